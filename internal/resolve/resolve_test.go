package resolve_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datarobot-community/drdb-connect/internal/dr"
	"github.com/datarobot-community/drdb-connect/internal/resolve"
	"github.com/datarobot-community/drdb-connect/internal/testutil"
)

const token = "resolver-token"

func setup(t *testing.T) (*testutil.FakeDataRobot, *resolve.Resolver) {
	t.Helper()
	fake := testutil.NewFakeDataRobot(t, token)
	logger := testutil.NewTestLogger(t)
	client, err := dr.NewClient(fake.Endpoint(), token,
		dr.WithLogger(logger), dr.WithStatusPollInterval(time.Millisecond))
	require.NoError(t, err)
	return fake, resolve.New(client, logger)
}

func datastoreSpec() resolve.DatastoreSpec {
	return resolve.DatastoreSpec{
		CanonicalName: "DBDRConnect Datastore",
		DriverID:      "652eb4562295307b93b0ce82",
		Type:          "dr-database-v1",
		Fields: []dr.Field{
			{ID: "dbx.http_path", Name: "HTTP path", Value: "sql/protocolv1/o/bar123/5678"},
			{ID: "dbx.server_hostname", Name: "Server hostname", Value: "foo-bar123.cloud.example.com"},
		},
	}
}

func TestDatastoreIsIdempotent(t *testing.T) {
	fake, r := setup(t)
	ctx := context.Background()
	fake.AddDataStore("unrelated")
	fake.AddDataStore("DBDRConnect Datastore (old)")

	first, err := r.Datastore(ctx, datastoreSpec())
	require.NoError(t, err)
	second, err := r.Datastore(ctx, datastoreSpec())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, fake.Calls("POST /externalDataStores/{$}"))
	value, ok := second.Field("dbx.http_path")
	require.True(t, ok)
	assert.Equal(t, "sql/protocolv1/o/bar123/5678", value)
	assert.Equal(t, "652eb4562295307b93b0ce82", second.Params.DriverID)
}

func TestDatastoreAmbiguous(t *testing.T) {
	fake, r := setup(t)
	fake.AddDataStore("DBDRConnect Datastore")
	fake.AddDataStore("DBDRConnect Datastore")

	_, err := r.Datastore(context.Background(), datastoreSpec())
	var ambiguous *resolve.AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	assert.Len(t, ambiguous.Matches, 2)
	assert.Equal(t, 0, fake.Calls("POST /externalDataStores/{$}"))
}

func TestDatastoreCustomLookup(t *testing.T) {
	fake, r := setup(t)
	id := fake.AddDataStore("Team DBDRConnect Datastore")

	lookup := resolve.NameContains("DBDRConnect")
	spec := datastoreSpec()
	spec.Lookup = &lookup
	ds, err := r.Datastore(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, id, ds.ID)
	assert.Equal(t, 0, fake.Calls("POST /externalDataStores/{$}"))
}

func TestFindDatastoreNotFound(t *testing.T) {
	fake, r := setup(t)
	fake.AddDataStore("something else")

	_, err := r.FindDatastore(context.Background(), resolve.NameContains("DBDR"))
	var notFound *resolve.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCredentialReplacesOrCreates(t *testing.T) {
	fake, r := setup(t)
	ctx := context.Background()
	spec := resolve.CredentialSpec{
		Name:   "DBDR Credentials",
		Type:   dr.CredentialTypeDatabricksAccessToken,
		Secret: "dapi-old",
	}

	created, err := r.Credential(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, "dapi-old", fake.CredentialSecret(created.CredentialID))

	spec.Secret = "dapi-new"
	replaced, err := r.Credential(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, created.CredentialID, replaced.CredentialID)
	assert.Equal(t, "dapi-new", fake.CredentialSecret(created.CredentialID))
	assert.Equal(t, 1, fake.Calls("POST /credentials/{$}"))
	assert.Equal(t, 1, fake.Calls("PATCH /credentials/{id}/{$}"))
}

func TestCredentialUnsupportedType(t *testing.T) {
	fake, r := setup(t)
	_, err := r.Credential(context.Background(), resolve.CredentialSpec{Name: "x", Type: "basic", Secret: "s"})
	require.Error(t, err)
	assert.Equal(t, 0, fake.Calls("GET /credentials/{$}"))
}

func TestDatasourceIsIdempotent(t *testing.T) {
	fake, r := setup(t)
	ctx := context.Background()
	spec := resolve.DatasourceSpec{
		CanonicalName: "orders",
		Type:          "dr-database-v1",
		DataStoreID:   "ds1",
		Catalog:       "main",
		Schema:        "sales",
		Table:         "orders",
	}

	first, err := r.Datasource(ctx, spec)
	require.NoError(t, err)
	second, err := r.Datasource(ctx, spec)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, dr.DataSourceParams{DataStoreID: "ds1", Catalog: "main", Schema: "sales", Table: "orders"}, second.Params)
	assert.Equal(t, 1, fake.Calls("POST /externalDataSources/{$}"))
}

func TestDatasetIsIdempotent(t *testing.T) {
	fake, r := setup(t)
	ctx := context.Background()
	fake.AddDataset("other")
	spec := resolve.DatasetSpec{Name: "orders", DataSourceID: "src1", CredentialID: "cred1"}

	first, err := r.Dataset(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, "orders", first.Name)

	second, err := r.Dataset(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, first.DatasetID, second.DatasetID)
	assert.Equal(t, 1, fake.Calls("POST /datasets/fromDataSource/{$}"))

	stored, ok := fake.Dataset(first.DatasetID)
	require.True(t, ok)
	assert.Equal(t, "src1", stored.DataSourceID)
	assert.Equal(t, "cred1", stored.CredentialID)
}

// vanishingCredentials answers 404 to every credential update, as if the credential was
// deleted right after it was listed.
type vanishingCredentials struct {
	*dr.Client
}

func (vanishingCredentials) UpdateCredential(context.Context, string, dr.CredentialRequest) (*dr.Credential, error) {
	return nil, &dr.APIError{Method: http.MethodPatch, URL: "credentials/x/", StatusCode: http.StatusNotFound}
}

func TestCredentialRecreatedWhenDeletedDuringUpdate(t *testing.T) {
	fake := testutil.NewFakeDataRobot(t, token)
	logger := testutil.NewTestLogger(t)
	client, err := dr.NewClient(fake.Endpoint(), token, dr.WithLogger(logger))
	require.NoError(t, err)
	oldID := fake.AddCredential("DBDR Credentials", "dapi-old")

	r := resolve.New(vanishingCredentials{client}, logger)
	cred, err := r.Credential(context.Background(), resolve.CredentialSpec{
		Name:   "DBDR Credentials",
		Type:   dr.CredentialTypeDatabricksAccessToken,
		Secret: "dapi-new",
	})
	require.NoError(t, err)
	assert.NotEqual(t, oldID, cred.CredentialID)
	assert.Equal(t, "dapi-new", fake.CredentialSecret(cred.CredentialID))
}

func TestDatastoreWarnsOnFieldMismatch(t *testing.T) {
	fake := testutil.NewFakeDataRobot(t, token)
	client, err := dr.NewClient(fake.Endpoint(), token)
	require.NoError(t, err)
	var logs bytes.Buffer
	r := resolve.New(client, slog.New(slog.NewTextHandler(&logs, nil)))

	id := fake.AddDataStore("DBDRConnect Datastore",
		testutil.FakeField{ID: "dbx.http_path", Name: "HTTP path", Value: "sql/protocolv1/o/bar123/9999"},
		testutil.FakeField{ID: "dbx.server_hostname", Name: "Server hostname", Value: "foo-bar123.cloud.example.com"},
	)

	ds, err := r.Datastore(context.Background(), datastoreSpec())
	require.NoError(t, err)
	assert.Equal(t, id, ds.ID)
	assert.Equal(t, 0, fake.Calls("POST /externalDataStores/{$}"))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "field=dbx.http_path")
	assert.NotContains(t, logs.String(), "field=dbx.server_hostname")
}

func TestDatasetWaitsForExistingIngest(t *testing.T) {
	fake, r := setup(t)
	ctx := context.Background()
	fake.StatusPolls = 2
	spec := resolve.DatasetSpec{Name: "orders", DataSourceID: "src1", CredentialID: "cred1"}

	first, err := r.Dataset(ctx, spec)
	require.NoError(t, err)

	fake.SetStatusPolls(2)
	second, err := r.Dataset(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, first.DatasetID, second.DatasetID)
	assert.Equal(t, dr.ProcessingCompleted, second.ProcessingState)
	assert.Equal(t, 1, fake.Calls("POST /datasets/fromDataSource/{$}"))
}
