package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/datarobot-community/drdb-connect/internal/drdb"
	"github.com/datarobot-community/drdb-connect/internal/utils"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Registers a Databricks cluster in DataRobot",
	Long: "Gets or creates the DataRobot datastore for a Databricks cluster and the DataRobot credential " +
		"holding the Databricks token, and associates the two.",
	Run: func(cmd *cobra.Command, args []string) {
		config := readConfig()
		conn := connectFromConfig(cmd.Context(), config, connectOptions(config))
		printConnection(conn)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

// connectFromConfig asks for whatever connection settings are still missing and connects.
func connectFromConfig(ctx context.Context, config *utils.Config, opts drdb.Options) *drdb.Connect {
	configDrCreds(config)
	configDbxCreds(config, true)
	if config.DbxClusterId == "" {
		config.DbxClusterId = inputStringValue("Databricks cluster ID", false, false)
	}

	conn, err := drdb.New(ctx, config.DrEndpoint, config.DrToken,
		config.DbxHost, config.DbxToken, config.DbxClusterId, opts)
	if err != nil {
		log.Fatalf("Error connecting Databricks to DataRobot: %v", err)
	}
	return conn
}

func connectOptions(config *utils.Config) drdb.Options {
	return drdb.Options{
		DatastoreName:        config.DatastoreName,
		CredentialName:       config.CredentialName,
		EnsureClusterRunning: config.EnsureClusterRunning,
		StatusTimeout:        config.StatusTimeout,
		Logger:               slog.Default(),
	}
}

func printConnection(conn *drdb.Connect) {
	fmt.Printf("Databricks host: %s\n", conn.Host())
	fmt.Printf("Databricks cluster ID: %s\n", conn.ClusterID())
	fmt.Printf("DataRobot datastore: %s (ID: %s)\n", conn.Datastore().CanonicalName, conn.Datastore().ID)
	fmt.Printf("DataRobot credential: %s (ID: %s)\n", conn.Credential().Name, conn.Credential().CredentialID)
	if err := conn.AssociationErr(); err != nil {
		fmt.Println("Warning: the credential could not be associated with the datastore; select it manually in DataRobot")
	}
}
