package dbx

import (
	"context"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/compute"
)

// AuthFromFile returns a WorkspaceClient for a profile in a .databrickscfg file.
// Empty arguments select the DEFAULT profile of ~/.databrickscfg.
func AuthFromFile(configFile, profile string) (*databricks.WorkspaceClient, error) {
	config := &databricks.Config{
		Profile:    profile,
		ConfigFile: configFile,
	}

	dbxClient, err := databricks.NewWorkspaceClient(config)
	if err != nil {
		return nil, err
	}

	err = checkAuth(dbxClient)
	if err != nil {
		return nil, err
	}

	return dbxClient, nil
}

func newClient(dbxHost string, dbxToken string) (*databricks.WorkspaceClient, error) {
	return databricks.NewWorkspaceClient(&databricks.Config{
		Host:  dbxHost,
		Token: dbxToken,
	})
}

func checkAuth(dbxClient *databricks.WorkspaceClient) error {
	// Check that authentication worked, by listing clusters in the workspace
	_, err := dbxClient.Clusters.ListAll(context.Background(), compute.ListClustersRequest{})
	return err
}
