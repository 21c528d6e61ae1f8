package util

import (
	"io"
	"os"
	"strings"

	"github.com/ValentinKolb/memdoc/lib/collection"
	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/serializer"
	"github.com/ValentinKolb/memdoc/lib/ttl"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += len(word)
	}
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads .env files and enables MEMDOC_* environment variables.
// Flags set on the command line take precedence over both.
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("memdoc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// ReadConfigFile reads the file named by the "config" key into viper
func ReadConfigFile() error {
	path := viper.GetString("config")
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return common.NewErrorf(common.CodeInvalidConfig, "reading config file %s: %v", path, err)
	}
	return nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupCollectionFlags adds the flags describing the collection the data
// file is loaded into
func SetupCollectionFlags(cmd *cobra.Command) {
	key := "data"
	cmd.Flags().StringP(key, "d", "", WrapString("File with the documents to load: a JSON array, JSON lines or a binary export. Use - for stdin"))

	key = "name"
	cmd.Flags().String(key, "docs", WrapString("Name of the collection"))

	key = "key"
	cmd.Flags().StringP(key, "k", "id", WrapString("Primary key field"))

	key = "key-type"
	cmd.Flags().String(key, "text", WrapString("Type of the primary key (text, number)"))

	key = "key-gen"
	cmd.Flags().String(key, "none", WrapString("How missing primary keys are generated (none, uuid, increment)"))

	key = "unique"
	cmd.Flags().StringSliceP(key, "u", nil, WrapString("Unique fields (comma separated or repeated)"))

	key = "ttl"
	cmd.Flags().String(key, "none", WrapString("Time to live of the loaded records, e.g. 90s or 1h (none = never expire)"))

	key = "upsert"
	cmd.Flags().Bool(key, false, WrapString("Replace documents with an existing primary key instead of rejecting them"))
}

// GetCollectionConfig builds the collection configuration from viper
func GetCollectionConfig() (collection.Config, error) {
	keyType, err := collection.ParseKeyType(viper.GetString("key-type"))
	if err != nil {
		return collection.Config{}, err
	}
	keyGen, err := collection.ParseKeyGen(viper.GetString("key-gen"))
	if err != nil {
		return collection.Config{}, err
	}
	policy, err := ttl.ParsePolicy(viper.GetString("ttl"))
	if err != nil {
		return collection.Config{}, err
	}

	var unique []string
	for _, f := range viper.GetStringSlice("unique") {
		for _, part := range strings.Split(f, ",") {
			if part = strings.TrimSpace(part); part != "" {
				unique = append(unique, part)
			}
		}
	}

	cfg := collection.Config{
		Name:         viper.GetString("name"),
		PrimaryKey:   viper.GetString("key"),
		KeyType:      keyType,
		KeyGen:       keyGen,
		UniqueFields: unique,
		TTL:          policy,
	}
	return cfg, cfg.Validate()
}

// GetSerializer returns the serializer selected with the "format" key
func GetSerializer() (serializer.ISerializer, error) {
	name := viper.GetString("format")
	s, ok := serializer.ByName(name)
	if !ok {
		return nil, errors.Newf("invalid format %q, use json or binary", name)
	}
	return s, nil
}

// ReadInput reads the file at path, or stdin for "-"
func ReadInput(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("no data file given, use --data FILE")
	}
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, errors.Wrap(err, "reading stdin")
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrapf(err, "reading %s", path)
}
