package data

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/memdoc/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Loads documents and prints collection info and metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, c, report, err := util.LoadFile(dataPath(), viper.GetBool("upsert"))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := util.RenderReport(cmd.OutOrStdout(), report); err != nil {
			return err
		}

		info, err := c.Info()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\n", out)

		if viper.GetBool("no-metrics") {
			return nil
		}
		db.WriteMetrics(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	key := "no-metrics"
	statsCmd.Flags().Bool(key, false, util.WrapString("Do not print the Prometheus metrics"))
}
