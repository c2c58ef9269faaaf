package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datarobot-community/drdb-connect/internal/utils"
)

var (
	v          = utils.NewViper()
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "drdbx",
	Short: "Connects a Databricks cluster to DataRobot",
	Long: "Registers a Databricks cluster as a DataRobot datastore, stores the Databricks token as a " +
		"DataRobot credential, and turns Unity Catalog tables into DataRobot datasets.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default $HOME/.drdbx/drdbx.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every API request")

	flags.String("dr-endpoint", utils.DefaultDREndpoint, "DataRobot API endpoint")
	flags.String("dr-token", "", "DataRobot API token")
	flags.String("dbx-host", "", "Databricks workspace URL, e.g. https://adb-1234567890123456.7.azuredatabricks.net")
	flags.String("dbx-token", "", "Databricks personal access token")
	flags.String("dbx-cluster-id", "", "Databricks cluster ID")
	flags.String("dbx-profile", "", "read the Databricks host and token from this ~/.databrickscfg profile")
	flags.String("datastore-name", utils.DefaultDatastoreName, "canonical name of the DataRobot datastore")
	flags.String("credential-name", utils.DefaultCredentialName, "name of the DataRobot credential")
	flags.Bool("ensure-cluster-running", false, "start the cluster if it is terminated")
	flags.Duration("status-timeout", utils.DefaultStatusTimeout, "how long to wait for dataset ingestion")

	bindFlags(v, map[string]string{
		"dr_endpoint":            "dr-endpoint",
		"dr_token":               "dr-token",
		"dbx_host":               "dbx-host",
		"dbx_token":              "dbx-token",
		"dbx_cluster_id":         "dbx-cluster-id",
		"dbx_profile":            "dbx-profile",
		"datastore_name":         "datastore-name",
		"credential_name":        "credential-name",
		"ensure_cluster_running": "ensure-cluster-running",
		"status_timeout":         "status-timeout",
	})
}

func bindFlags(v *viper.Viper, keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
}
