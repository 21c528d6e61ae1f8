package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/memdoc/cmd/data"
	"github.com/ValentinKolb/memdoc/cmd/perf"
	"github.com/ValentinKolb/memdoc/cmd/util"
	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "memdoc",
		Short: "in-process document collections",
		Long: fmt.Sprintf(`memdoc (v%s)

An embeddable in-process document collection engine written in Go.
Collections enforce primary key and unique constraints, expire records
after a time to live and answer conjunctive queries with projections.

The commands load a data file into a collection and work on it.`, Version),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			return common.InitLoggers(viper.GetString("log-level"))
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of memdoc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "memdoc v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(data.Commands...)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warning", util.WrapString("Log level (debug, info, warning, error)"))
	key = "config"
	RootCmd.PersistentFlags().StringP(key, "c", "", util.WrapString("Config file (yaml, json or toml) with defaults for any flag"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", util.DescribeError(err))
		os.Exit(1)
	}
}
