package data

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/memdoc/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const users = `[
  {"id": "1", "name": "Ada", "email": "ada@x.com", "age": 36, "role": "admin"},
  {"id": "2", "name": "Bob", "email": "bob@x.com", "age": 25, "role": "dev"},
  {"id": "3", "name": "Cy", "email": "ada@x.com", "age": 41},
  {"id": "4", "name": "Di", "email": "di@x.com", "age": "unknown", "role": "ops"}
]`

func writeData(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the data commands under a fresh root and returns stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := &cobra.Command{Use: "memdoc", SilenceUsage: true, SilenceErrors: true}
	for _, cmd := range Commands {
		resetFlags(cmd)
		root.AddCommand(cmd)
	}
	t.Cleanup(func() { root.RemoveCommand(Commands...) })

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	util.InitConfig()
	err := root.Execute()
	return out.String(), err
}

// flag values survive between executions of the same command
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func TestQueryCommand(t *testing.T) {
	path := writeData(t, users)

	out, err := execute(t, "query", "-d", path, "-u", "email", "-s", "name,age", "-w", "age>=30")
	require.NoError(t, err)
	assert.Equal(t, "name  age\nAda   36\n", out)

	out, err = execute(t, "query", "-d", path, "-s", "id", "-w", "role in [admin, ops]", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\"id\":\"1\"},\n  {\"id\":\"4\"}\n]\n", out)

	_, err = execute(t, "query", "-d", path, "-w", "age")
	require.Error(t, err)
}

func TestQuerySpecFile(t *testing.T) {
	path := writeData(t, users)
	spec := filepath.Join(t.TempDir(), "spec.json")
	require.NoError(t, os.WriteFile(spec, []byte(`{"select": "name", "where": [{"field": "age", "op": "lt", "value": 30}]}`), 0o644))

	out, err := execute(t, "query", "-d", path, "--spec", spec)
	require.NoError(t, err)
	assert.Equal(t, "name\nBob\n", out)
}

func TestCheckCommand(t *testing.T) {
	path := writeData(t, users)

	out, err := execute(t, "check", "-d", path, "-u", "email")
	require.NoError(t, err)
	assert.Contains(t, out, `loaded 4 documents into "docs": 3 inserted, 0 updated, 1 rejected`)
	assert.Contains(t, out, "#3 UniqueConstraintViolation (email)")

	_, err = execute(t, "check", "-d", path, "-u", "email", "--strict")
	require.Error(t, err)

	_, err = execute(t, "check", "-d", path, "--strict")
	require.NoError(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	path := writeData(t, users)

	for _, format := range []string{"json", "binary"} {
		t.Run(format, func(t *testing.T) {
			exported := filepath.Join(t.TempDir(), "export")
			_, err := execute(t, "export", "-d", path, "-u", "email", "-f", format, "--out", exported)
			require.NoError(t, err)

			out, err := execute(t, "query", "-d", exported, "-s", "id")
			require.NoError(t, err)
			assert.Equal(t, "id\n1\n2\n4\n", out)
		})
	}
}

func TestExportNDJSON(t *testing.T) {
	path := writeData(t, `[{"id": "a", "n": 1}, {"id": "b", "n": 2}]`)

	out, err := execute(t, "export", "-d", path, "-f", "ndjson")
	require.NoError(t, err)
	assert.Equal(t, "{\"key\":\"a\",\"document\":{\"id\":\"a\",\"n\":1}}\n{\"key\":\"b\",\"document\":{\"id\":\"b\",\"n\":2}}\n", out)
}

func TestStatsCommand(t *testing.T) {
	path := writeData(t, users)

	out, err := execute(t, "stats", "-d", path, "--name", "users", "-u", "email")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "users"`)
	assert.Contains(t, out, `memdoc_records{collection="users"} 3`)

	out, err = execute(t, "stats", "-d", path, "--no-metrics")
	require.NoError(t, err)
	assert.NotContains(t, out, "memdoc_records")
}
