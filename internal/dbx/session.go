package dbx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/databricks/databricks-sdk-go"
)

// ClusterNotFoundError is returned when the requested cluster is not in the workspace.
type ClusterNotFoundError struct {
	Host      string
	ClusterID string
}

func (e *ClusterNotFoundError) Error() string {
	return fmt.Sprintf("cluster %s not found in Databricks workspace %s", e.ClusterID, e.Host)
}

type SessionOptions struct {
	// EnsureRunning starts the cluster (and waits for it) if it is terminated.
	EnsureRunning bool
	Logger        *slog.Logger
}

// Session is an authenticated handle on one cluster of a Databricks workspace.
type Session struct {
	host      string
	clusterID string
	client    *databricks.WorkspaceClient
	logger    *slog.Logger
}

// Open authenticates to the workspace at host and binds the session to clusterID.
func Open(ctx context.Context, host, token, clusterID string, opts SessionOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := newClient(host, token)
	if err != nil {
		return nil, fmt.Errorf("unable to configure Databricks client for %s: %w", host, err)
	}

	exists, err := ClusterExists(ctx, client, clusterID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &ClusterNotFoundError{Host: host, ClusterID: clusterID}
	}

	if opts.EnsureRunning {
		logger.Info("ensuring cluster is running", "cluster_id", clusterID)
		if err := client.Clusters.EnsureClusterIsRunning(ctx, clusterID); err != nil {
			return nil, fmt.Errorf("unable to start cluster %s: %w", clusterID, err)
		}
	}

	logger.Debug("opened Databricks session", "host", host, "cluster_id", clusterID)
	return &Session{host: host, clusterID: clusterID, client: client, logger: logger}, nil
}

func (s *Session) Host() string      { return s.host }
func (s *Session) ClusterID() string { return s.clusterID }

// TableExists reports whether catalog.schema.table is registered in Unity Catalog.
func (s *Session) TableExists(ctx context.Context, catalogName, schemaName, tableName string) (bool, error) {
	return TableExists(ctx, s.client, catalogName, schemaName, tableName)
}
