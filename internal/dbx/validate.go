package dbx

import (
	"context"
	"fmt"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/apierr"
	"github.com/databricks/databricks-sdk-go/service/compute"
)

// TableFullName joins Unity Catalog coordinates into catalog.schema.table.
func TableFullName(catalogName, schemaName, tableName string) string {
	return fmt.Sprintf("%s.%s.%s", catalogName, schemaName, tableName)
}

// TableExists checks if the specified table exists in the Databricks Unity Catalog.
// Errors other than "does not exist" are returned to the caller.
func TableExists(ctx context.Context, dbxClient *databricks.WorkspaceClient, catalogName, schemaName, tableName string) (bool, error) {
	_, err := dbxClient.Tables.GetByFullName(ctx, TableFullName(catalogName, schemaName, tableName))
	if err != nil {
		if apierr.IsMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("error fetching table: %w", err)
	}
	return true, nil
}

// ClusterExists checks if the specified cluster exists in the Databricks workspace.
func ClusterExists(ctx context.Context, dbxClient *databricks.WorkspaceClient, clusterID string) (bool, error) {
	_, err := dbxClient.Clusters.Get(ctx, compute.GetClusterRequest{ClusterId: clusterID})
	if err != nil {
		if apierr.IsMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("error fetching cluster: %w", err)
	}
	return true, nil
}
