package data

import (
	"fmt"
	"os"
	"slices"

	"github.com/ValentinKolb/memdoc/cmd/util"
	"github.com/ValentinKolb/memdoc/lib/collection"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/ValentinKolb/memdoc/lib/query"
	"github.com/ValentinKolb/memdoc/lib/serializer"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	queryCmd = &cobra.Command{
		Use:   "query",
		Short: "Loads documents and runs a query against them",
		Example: `  memdoc query -d users.json -s name,email -w "age>=25" -w "status=active"
  memdoc query -d users.json --unique email --spec adults.json -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, c, report, err := util.LoadFile(dataPath(), viper.GetBool("upsert"))
			if err != nil {
				return err
			}
			defer db.Close()
			if len(report.Rejected) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d of %d documents rejected, run check for details\n",
					len(report.Rejected), report.Total)
			}

			b, err := buildQuery(c, whereFlags(cmd))
			if err != nil {
				return err
			}
			res, err := b.Run()
			if err != nil {
				return err
			}

			switch viper.GetString("output") {
			case "json":
				return util.RenderJSON(cmd.OutOrStdout(), res.Documents)
			case "table", "":
				return util.RenderTable(cmd.OutOrStdout(), res.Documents, b.Spec().Projection.Names())
			default:
				return errors.Newf("invalid output format %q, use table or json", viper.GetString("output"))
			}
		},
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Loads documents and reports every constraint violation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, report, err := util.LoadFile(dataPath(), viper.GetBool("upsert"))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := util.RenderReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if viper.GetBool("strict") && len(report.Rejected) > 0 {
				cmd.SilenceUsage = true
				return errors.Newf("%d documents rejected", len(report.Rejected))
			}
			return nil
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Loads documents and writes the accepted ones in json, ndjson or binary format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, c, _, err := util.LoadFile(dataPath(), viper.GetBool("upsert"))
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := c.Export()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path := viper.GetString("out"); path != "-" && path != "" {
				f, err := os.Create(path)
				if err != nil {
					return errors.Wrapf(err, "creating %s", path)
				}
				defer f.Close()
				out = f
			}

			switch format := viper.GetString("format"); format {
			case "json":
				docs := make([]document.Document, len(entries))
				for i, e := range entries {
					docs[i] = e.Document
				}
				return util.RenderJSON(out, docs)
			case "ndjson":
				s := serializer.NewJSONSerializer()
				for _, e := range entries {
					line, err := s.Serialize(e)
					if err != nil {
						return err
					}
					if _, err := fmt.Fprintf(out, "%s\n", line); err != nil {
						return err
					}
				}
				return nil
			default:
				s, err := util.GetSerializer()
				if err != nil {
					return err
				}
				_, err = serializer.WriteEntries(out, s, slices.Values(entries))
				return err
			}
		},
	}
)

// whereFlags returns the --where expressions; the flag is read directly
// since predicates may contain commas
func whereFlags(cmd *cobra.Command) []string {
	if cmd.Flags().Changed("where") {
		where, _ := cmd.Flags().GetStringArray("where")
		return where
	}
	return viper.GetStringSlice("where")
}

// buildQuery assembles the query from --spec or --select/--where
func buildQuery(c *collection.Collection, where []string) (*query.Builder, error) {
	if path := viper.GetString("spec"); path != "" {
		raw, err := util.ReadInput(path)
		if err != nil {
			return nil, err
		}
		spec, err := query.ParseSpec(raw)
		if err != nil {
			return nil, err
		}
		return c.Query(spec), nil
	}

	b := c.Select(viper.GetString("select"))
	for _, expr := range where {
		p, err := query.ParsePredicate(expr)
		if err != nil {
			return nil, err
		}
		b.Where(p)
	}
	return b, nil
}
