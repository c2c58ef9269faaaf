package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/datarobot-community/drdb-connect/internal/drdb"
	"github.com/datarobot-community/drdb-connect/internal/utils"
)

var reconnectCmd = &cobra.Command{
	Use:   "reconnect <datastore-name>",
	Short: "Reconnects using an existing DataRobot datastore",
	Long: "Finds the DataRobot datastore whose name contains <datastore-name>, reads the Databricks host and " +
		"cluster from it, and refreshes the DataRobot credential with a new Databricks token. The DataRobot " +
		"client is taken from DATAROBOT_ENDPOINT/DATAROBOT_API_TOKEN or drconfig.yaml.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := readConfig()
		conn := reconnectFromConfig(cmd.Context(), config, args[0], connectOptions(config))
		printConnection(conn)
	},
}

func init() {
	rootCmd.AddCommand(reconnectCmd)
}

func reconnectFromConfig(ctx context.Context, config *utils.Config, datastoreName string, opts drdb.Options) *drdb.Connect {
	configDbxCreds(config, false)
	conn, err := drdb.FromDatastore(ctx, datastoreName, config.DbxToken, opts)
	if err != nil {
		log.Fatalf("Error reconnecting from datastore %q: %v", datastoreName, err)
	}
	return conn
}
