package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/datarobot-community/drdb-connect/internal/drdb"
)

var (
	datasetCatalog       string
	datasetSchema        string
	datasetTable         string
	datasetName          string
	datasetFromDatastore string
	datasetValidate      bool
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Gets or creates a DataRobot dataset from a Unity Catalog table",
	Long: "Connects (or reconnects with --from-datastore), then gets or creates a DataRobot datasource and " +
		"dataset for catalog.schema.table. Both are named --name, or the table name if --name is empty.",
	Run: func(cmd *cobra.Command, args []string) {
		config := readConfig()

		opts := connectOptions(config)
		opts.ValidateTables = datasetValidate

		var conn *drdb.Connect
		if datasetFromDatastore != "" {
			conn = reconnectFromConfig(cmd.Context(), config, datasetFromDatastore, opts)
		} else {
			conn = connectFromConfig(cmd.Context(), config, opts)
		}

		name := datasetName
		if name == "" {
			name = datasetTable
		}
		dataset, err := conn.GetOrCreateDatasetFromUnity(cmd.Context(), datasetCatalog, datasetSchema, datasetTable, name)
		if err != nil {
			log.Fatalf("Error creating dataset from %s.%s.%s: %v", datasetCatalog, datasetSchema, datasetTable, err)
		}
		fmt.Printf("DataRobot dataset: %s (ID: %s, version: %s)\n", dataset.Name, dataset.DatasetID, dataset.VersionID)
	},
}

func init() {
	flags := datasetCmd.Flags()
	flags.StringVar(&datasetCatalog, "catalog", "", "Unity Catalog catalog")
	flags.StringVar(&datasetSchema, "schema", "", "schema within the catalog")
	flags.StringVar(&datasetTable, "table", "", "table within the schema")
	flags.StringVar(&datasetName, "name", "", "name of the DataRobot datasource and dataset")
	flags.StringVar(&datasetFromDatastore, "from-datastore", "", "reconnect from the datastore whose name contains this value")
	flags.BoolVar(&datasetValidate, "validate", false, "check that the table exists in Unity Catalog first")
	for _, required := range []string{"catalog", "schema", "table"} {
		_ = datasetCmd.MarkFlagRequired(required)
	}
	rootCmd.AddCommand(datasetCmd)
}
