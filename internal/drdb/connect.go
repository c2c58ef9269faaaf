// Package drdb connects a Databricks cluster to DataRobot: it registers the cluster as a
// DataRobot datastore, stores the Databricks token as a DataRobot credential, and turns
// Unity Catalog tables into DataRobot datasets.
package drdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/datarobot-community/drdb-connect/internal/dbx"
	"github.com/datarobot-community/drdb-connect/internal/dr"
	"github.com/datarobot-community/drdb-connect/internal/resolve"
	"github.com/datarobot-community/drdb-connect/internal/utils"
)

const (
	// DatabricksDriverID is the DataRobot JDBC driver registered for Databricks.
	DatabricksDriverID = "652eb4562295307b93b0ce82"
	// DatabaseType is the DataRobot type tag of driver based datastores and datasources.
	DatabaseType = "dr-database-v1"
)

// ComputeSession is an open session on a Databricks cluster.
type ComputeSession interface {
	Host() string
	ClusterID() string
	TableExists(ctx context.Context, catalogName, schemaName, tableName string) (bool, error)
}

// SessionOpener opens a compute session for a workspace host, token and cluster id.
type SessionOpener func(ctx context.Context, host, token, clusterID string) (ComputeSession, error)

type Options struct {
	DatastoreName  string
	CredentialName string
	DriverID       string
	DatastoreType  string
	CredentialType string

	// OpenSession defaults to dbx.Open.
	OpenSession          SessionOpener
	EnsureClusterRunning bool
	// ValidateTables checks Unity Catalog for the table before registering a datasource.
	ValidateTables bool

	StatusTimeout time.Duration
	ClientOptions []dr.Option
	Logger        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.DatastoreName == "" {
		o.DatastoreName = utils.DefaultDatastoreName
	}
	if o.CredentialName == "" {
		o.CredentialName = utils.DefaultCredentialName
	}
	if o.DriverID == "" {
		o.DriverID = DatabricksDriverID
	}
	if o.DatastoreType == "" {
		o.DatastoreType = DatabaseType
	}
	if o.CredentialType == "" {
		o.CredentialType = dr.CredentialTypeDatabricksAccessToken
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.OpenSession == nil {
		logger := o.Logger
		ensure := o.EnsureClusterRunning
		o.OpenSession = func(ctx context.Context, host, token, clusterID string) (ComputeSession, error) {
			return dbx.Open(ctx, host, token, clusterID, dbx.SessionOptions{EnsureRunning: ensure, Logger: logger})
		}
	}
	return o
}

func (o Options) clientOptions() []dr.Option {
	opts := append([]dr.Option{dr.WithLogger(o.Logger), dr.WithStatusTimeout(o.StatusTimeout)}, o.ClientOptions...)
	return opts
}

// Connect owns a DataRobot client and a Databricks compute session, and references the
// datastore and credential that link the two.
type Connect struct {
	client   *dr.Client
	resolver *resolve.Resolver
	session  ComputeSession
	params   dbx.ConnectionParams
	opts     Options
	logger   *slog.Logger

	datastore      *dr.DataStore
	credential     *dr.Credential
	associationErr error
}

// New connects to DataRobot at drEndpoint and to the Databricks cluster, then gets or
// creates the datastore and credential for the cluster.
func New(ctx context.Context, drEndpoint, drToken, dbxHost, dbxToken, clusterID string, opts Options) (*Connect, error) {
	opts = opts.withDefaults()
	client, err := dr.NewClient(drEndpoint, drToken, opts.clientOptions()...)
	if err != nil {
		return nil, err
	}
	return NewWithClient(ctx, client, dbxHost, dbxToken, clusterID, opts)
}

// NewWithClient is New for an already configured DataRobot client.
func NewWithClient(ctx context.Context, client *dr.Client, dbxHost, dbxToken, clusterID string, opts Options) (*Connect, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With("run_id", uuid.NewString())

	params, err := dbx.DeriveConnectionParams(dbxHost, clusterID)
	if err != nil {
		return nil, err
	}

	session, err := opts.OpenSession(ctx, params.Host, dbxToken, clusterID)
	if err != nil {
		return nil, fmt.Errorf("unable to open Databricks session: %w", err)
	}

	c := &Connect{
		client:   client,
		resolver: resolve.New(client, logger),
		session:  session,
		params:   params,
		opts:     opts,
		logger:   logger,
	}

	c.datastore, err = c.resolver.Datastore(ctx, resolve.DatastoreSpec{
		CanonicalName: opts.DatastoreName,
		DriverID:      opts.DriverID,
		Type:          opts.DatastoreType,
		Fields: []dr.Field{
			{ID: dbx.HTTPPathFieldID, Name: "HTTP path", Value: params.HTTPPath},
			{ID: dbx.ServerHostnameFieldID, Name: "Server hostname", Value: params.ServerHostname},
		},
	})
	if err != nil {
		return nil, err
	}

	c.credential, err = c.resolver.Credential(ctx, resolve.CredentialSpec{
		Name:   opts.CredentialName,
		Type:   opts.CredentialType,
		Secret: dbxToken,
	})
	if err != nil {
		return nil, err
	}

	// The link only makes DataRobot offer the credential by default for the datastore;
	// the connection works without it.
	err = client.AssociateCredential(ctx, c.credential.CredentialID, dr.CredentialAssociation{
		ObjectID:   c.datastore.ID,
		ObjectType: dr.ObjectTypeDataConnection,
	})
	if err != nil {
		c.associationErr = err
		logger.Warn("unable to associate credential with datastore",
			"credential_id", c.credential.CredentialID, "datastore_id", c.datastore.ID, "error", err)
	}

	logger.Info("connected Databricks cluster to DataRobot",
		"host", params.Host, "cluster_id", params.ClusterID, "datastore_id", c.datastore.ID)
	return c, nil
}

func (c *Connect) Client() *dr.Client           { return c.client }
func (c *Connect) Session() ComputeSession      { return c.session }
func (c *Connect) Params() dbx.ConnectionParams { return c.params }
func (c *Connect) Host() string                 { return c.params.Host }
func (c *Connect) ClusterID() string            { return c.params.ClusterID }
func (c *Connect) Datastore() *dr.DataStore     { return c.datastore }
func (c *Connect) Credential() *dr.Credential   { return c.credential }

// AssociationErr is the error of the credential/datastore association, if it failed.
func (c *Connect) AssociationErr() error { return c.associationErr }

// GetOrCreateDatasource gets or creates the datasource for catalog.schema.table on this
// connection's datastore.
func (c *Connect) GetOrCreateDatasource(ctx context.Context, catalogName, schemaName, tableName, datasourceName string) (*dr.DataSource, error) {
	if c.opts.ValidateTables {
		exists, err := c.session.TableExists(ctx, catalogName, schemaName, tableName)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &resolve.NotFoundError{
				Kind:  "Unity Catalog table",
				Query: dbx.TableFullName(catalogName, schemaName, tableName),
			}
		}
	}
	return c.resolver.Datasource(ctx, resolve.DatasourceSpec{
		CanonicalName: datasourceName,
		Type:          c.opts.DatastoreType,
		DataStoreID:   c.datastore.ID,
		Catalog:       catalogName,
		Schema:        schemaName,
		Table:         tableName,
	})
}

// GetOrCreateDatasetFromDatasource gets or creates the dataset named datasetName from
// source, read with this connection's credential.
func (c *Connect) GetOrCreateDatasetFromDatasource(ctx context.Context, source *dr.DataSource, datasetName string) (*dr.Dataset, error) {
	return c.resolver.Dataset(ctx, resolve.DatasetSpec{
		Name:         datasetName,
		DataSourceID: source.ID,
		CredentialID: c.credential.CredentialID,
	})
}

// GetOrCreateDatasetFromUnity registers a Unity Catalog table as a datasource and dataset,
// both named datasetName.
func (c *Connect) GetOrCreateDatasetFromUnity(ctx context.Context, catalogName, schemaName, tableName, datasetName string) (*dr.Dataset, error) {
	source, err := c.GetOrCreateDatasource(ctx, catalogName, schemaName, tableName, datasetName)
	if err != nil {
		return nil, err
	}
	return c.GetOrCreateDatasetFromDatasource(ctx, source, datasetName)
}
