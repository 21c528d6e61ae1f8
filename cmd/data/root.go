package data

import (
	"github.com/ValentinKolb/memdoc/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Commands lists the commands that load a data file into a collection
var Commands = []*cobra.Command{queryCmd, checkCmd, exportCmd, statsCmd}

func init() {
	for _, cmd := range Commands {
		util.SetupCollectionFlags(cmd)
		cmd.PreRunE = bindFlags
	}

	// query
	key := "select"
	queryCmd.Flags().StringP(key, "s", "*", util.WrapString("Fields to return (comma separated, * for all)"))
	key = "where"
	queryCmd.Flags().StringArrayP(key, "w", nil, util.WrapString(`Predicate, repeatable and AND-combined: "age>25", "status=active", "role in [admin, dev]"`))
	key = "spec"
	queryCmd.Flags().String(key, "", util.WrapString("JSON file with a query specification ({\"select\": ..., \"where\": [...]}) used instead of --select/--where"))
	key = "output"
	queryCmd.Flags().StringP(key, "o", "table", util.WrapString("Output format (table, json)"))

	// check
	key = "strict"
	checkCmd.Flags().Bool(key, false, util.WrapString("Exit with an error if any document was rejected"))

	// export
	key = "format"
	exportCmd.Flags().StringP(key, "f", "json", util.WrapString("Export format: json (array of documents), ndjson (one entry per line with key and expiry) or binary"))
	key = "out"
	exportCmd.Flags().String(key, "-", util.WrapString("Output file (- for stdout)"))
}

func bindFlags(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	return util.ReadConfigFile()
}

func dataPath() string {
	return viper.GetString("data")
}
