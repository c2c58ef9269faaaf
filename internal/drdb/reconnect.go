package drdb

import (
	"context"
	"fmt"

	"github.com/datarobot-community/drdb-connect/internal/dbx"
	"github.com/datarobot-community/drdb-connect/internal/dr"
	"github.com/datarobot-community/drdb-connect/internal/resolve"
)

// FromDatastore rebuilds a Connect from a datastore created earlier, using the ambient
// DataRobot client (DATAROBOT_ENDPOINT/DATAROBOT_API_TOKEN or drconfig.yaml) and a fresh
// Databricks token. datastoreName must be contained in exactly one datastore's name.
func FromDatastore(ctx context.Context, datastoreName, dbxToken string, opts Options) (*Connect, error) {
	opts = opts.withDefaults()
	client, err := dr.AmbientClient(opts.clientOptions()...)
	if err != nil {
		return nil, err
	}
	return FromDatastoreWithClient(ctx, client, datastoreName, dbxToken, opts)
}

// FromDatastoreWithClient is FromDatastore for an already configured DataRobot client.
func FromDatastoreWithClient(ctx context.Context, client *dr.Client, datastoreName, dbxToken string, opts Options) (*Connect, error) {
	opts = opts.withDefaults()

	ds, err := resolve.New(client, opts.Logger).FindDatastore(ctx, resolve.NameContains(datastoreName))
	if err != nil {
		return nil, err
	}

	httpPath, ok := ds.Field(dbx.HTTPPathFieldID)
	if !ok {
		return nil, fmt.Errorf("datastore %q has no %s field", ds.CanonicalName, dbx.HTTPPathFieldID)
	}
	serverHostname, ok := ds.Field(dbx.ServerHostnameFieldID)
	if !ok {
		return nil, fmt.Errorf("datastore %q has no %s field", ds.CanonicalName, dbx.ServerHostnameFieldID)
	}

	params, err := dbx.ParamsFromFields(serverHostname, httpPath)
	if err != nil {
		return nil, fmt.Errorf("datastore %q: %w", ds.CanonicalName, err)
	}

	// Resolve back to the datastore that was found rather than the default name.
	opts.DatastoreName = ds.CanonicalName
	return NewWithClient(ctx, client, params.Host, dbxToken, params.ClusterID, opts)
}
