package dr_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datarobot-community/drdb-connect/internal/dr"
	"github.com/datarobot-community/drdb-connect/internal/testutil"
)

const token = "test-token"

func newClient(t *testing.T, endpoint string, opts ...dr.Option) *dr.Client {
	t.Helper()
	opts = append([]dr.Option{
		dr.WithLogger(testutil.NewTestLogger(t)),
		dr.WithStatusPollInterval(time.Millisecond),
		dr.WithStatusTimeout(5 * time.Second),
	}, opts...)
	client, err := dr.NewClient(endpoint, token, opts...)
	require.NoError(t, err)
	return client
}

func TestNewClientValidatesEndpoint(t *testing.T) {
	_, err := dr.NewClient("not a url", token)
	require.Error(t, err)
	_, err = dr.NewClient("ftp://example.com/api/v2", token)
	require.Error(t, err)
	_, err = dr.NewClient("https://app.datarobot.com/api/v2", "")
	require.Error(t, err)

	client, err := dr.NewClient("https://app.datarobot.com/api/v2/", token)
	require.NoError(t, err)
	assert.Equal(t, "https://app.datarobot.com/api/v2", client.Endpoint())
	assert.Equal(t, token, client.Token())
}

func TestListFollowsPagination(t *testing.T) {
	fake := testutil.NewFakeDataRobot(t, token)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		fake.AddDataStore(name)
	}
	client := newClient(t, fake.Endpoint())

	stores, err := client.ListDataStores(context.Background(), "all")
	require.NoError(t, err)
	require.Len(t, stores, 5)
	assert.Equal(t, "e", stores[4].CanonicalName)
	assert.Equal(t, 3, fake.Calls("GET /externalDataStores/{$}"))
}

func TestAPIError(t *testing.T) {
	fake := testutil.NewFakeDataRobot(t, "another-token")
	client := newClient(t, fake.Endpoint())

	_, err := client.ListCredentials(context.Background())
	var apiErr *dr.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Invalid API token")
}

func TestIsNotFound(t *testing.T) {
	fake := testutil.NewFakeDataRobot(t, token)
	client := newClient(t, fake.Endpoint())

	_, err := client.GetDataset(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, dr.IsNotFound(err))
	assert.False(t, dr.IsNotFound(errors.New("boom")))
}

func TestCredentialLifecycle(t *testing.T) {
	fake := testutil.NewFakeDataRobot(t, token)
	client := newClient(t, fake.Endpoint())
	ctx := context.Background()

	cred, err := client.CreateCredential(ctx, dr.CredentialRequest{
		Name:                  "creds",
		CredentialType:        dr.CredentialTypeDatabricksAccessToken,
		DatabricksAccessToken: "dapi-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, cred.CredentialID)

	updated, err := client.UpdateCredential(ctx, cred.CredentialID, dr.CredentialRequest{
		CredentialType:        dr.CredentialTypeDatabricksAccessToken,
		DatabricksAccessToken: "dapi-2",
	})
	require.NoError(t, err)
	assert.Equal(t, cred.CredentialID, updated.CredentialID)
	assert.Equal(t, "dapi-2", fake.CredentialSecret(cred.CredentialID))

	dsID := fake.AddDataStore("store")
	require.NoError(t, client.AssociateCredential(ctx, cred.CredentialID, dr.CredentialAssociation{
		ObjectID:   dsID,
		ObjectType: dr.ObjectTypeDataConnection,
	}))
	assert.Equal(t, []string{dsID}, fake.AssociatedWith(cred.CredentialID))
}

func TestStartDatasetAndWaitForStatus(t *testing.T) {
	fake := testutil.NewFakeDataRobot(t, token)
	fake.StatusPolls = 3
	client := newClient(t, fake.Endpoint())
	ctx := context.Background()

	job, err := client.StartDatasetFromDataSource(ctx, dr.CreateDatasetFromDataSourceRequest{
		DataSourceID: "src1",
		CredentialID: "cred1",
		DoSnapshot:   true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.DatasetID)
	require.NotEmpty(t, job.StatusURL)

	require.NoError(t, client.WaitForStatus(ctx, job.StatusURL))
	assert.Equal(t, 4, fake.Calls("GET /status/{id}/{$}"))

	ds, err := client.GetDataset(ctx, job.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, dr.ProcessingCompleted, ds.ProcessingState)
	stored, ok := fake.Dataset(ds.DatasetID)
	require.True(t, ok)
	assert.Equal(t, "src1", stored.DataSourceID)
	assert.Equal(t, "cred1", stored.CredentialID)
}

func TestWaitForDatasetPollsProcessingState(t *testing.T) {
	fake := testutil.NewFakeDataRobot(t, token)
	fake.StatusPolls = 2
	client := newClient(t, fake.Endpoint())
	ctx := context.Background()

	job, err := client.StartDatasetFromDataSource(ctx, dr.CreateDatasetFromDataSourceRequest{DataSourceID: "src1", DoSnapshot: true})
	require.NoError(t, err)

	ds, err := client.WaitForDataset(ctx, job.DatasetID)
	require.NoError(t, err)
	assert.False(t, ds.Ingesting())
	assert.Equal(t, 0, fake.Calls("GET /status/{id}/{$}"))
	assert.Equal(t, 3, fake.Calls("GET /datasets/{id}/{$}"))
}

func TestWaitForDatasetProcessingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"datasetId": "d1", "name": "orders", "processingState": "ERROR"}`))
	}))
	t.Cleanup(srv.Close)
	client := newClient(t, srv.URL+"/api/v2")

	_, err := client.WaitForDataset(context.Background(), "d1")
	var procErr *dr.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "d1", procErr.DatasetID)
}

func TestWaitForStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"statusId": "s1", "status": "ERROR", "message": "table not readable"}`))
	}))
	t.Cleanup(srv.Close)
	client := newClient(t, srv.URL+"/api/v2")

	err := client.WaitForStatus(context.Background(), "status/s1/")
	var statusErr *dr.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "table not readable", statusErr.Message)
}

func TestWaitForStatusTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"statusId": "s1", "status": "RUNNING"}`))
	}))
	t.Cleanup(srv.Close)
	client := newClient(t, srv.URL+"/api/v2", dr.WithStatusTimeout(50*time.Millisecond))

	err := client.WaitForStatus(context.Background(), "status/s1/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUNNING")
}

func TestAmbientClient(t *testing.T) {
	t.Setenv("DATAROBOT_ENDPOINT", "https://example.datarobot.com/api/v2")
	t.Setenv("DATAROBOT_API_TOKEN", "ambient-token")

	client, err := dr.AmbientClient()
	require.NoError(t, err)
	assert.Equal(t, "https://example.datarobot.com/api/v2", client.Endpoint())
	assert.Equal(t, "ambient-token", client.Token())
}
