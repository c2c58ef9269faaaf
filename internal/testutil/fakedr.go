package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const apiPrefix = "/api/v2"

type FakeField struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type FakeDataStore struct {
	ID            string `json:"id"`
	CanonicalName string `json:"canonicalName"`
	Type          string `json:"type"`
	Params        struct {
		DriverID string      `json:"driverId,omitempty"`
		Fields   []FakeField `json:"fields,omitempty"`
	} `json:"params"`
}

type FakeCredential struct {
	CredentialID          string `json:"credentialId"`
	Name                  string `json:"name"`
	CredentialType        string `json:"credentialType"`
	DatabricksAccessToken string `json:"-"`
}

type FakeDataSource struct {
	ID            string `json:"id"`
	CanonicalName string `json:"canonicalName"`
	Type          string `json:"type"`
	Params        struct {
		DataStoreID string `json:"dataStoreId"`
		Catalog     string `json:"catalog,omitempty"`
		Schema      string `json:"schema,omitempty"`
		Table       string `json:"table,omitempty"`
	} `json:"params"`
}

type FakeDataset struct {
	DatasetID       string `json:"datasetId"`
	VersionID       string `json:"versionId"`
	Name            string `json:"name"`
	IsSnapshot      bool   `json:"isSnapshot"`
	ProcessingState string `json:"processingState"`
	DataSourceID    string `json:"-"`
	CredentialID    string `json:"-"`

	statusID string
}

type fakeStatus struct {
	datasetID string
	polls     int
}

// FakeDataRobot is an httptest server implementing the datastore, credential,
// datasource, dataset and status endpoints of the DataRobot API in memory.
type FakeDataRobot struct {
	Server *httptest.Server
	Token  string

	// PageSize bounds list responses so clients have to follow next links.
	PageSize int
	// FailAssociations makes credential association requests answer 500.
	FailAssociations bool
	// StatusPolls is how many RUNNING answers a status URL gives before redirecting.
	// Reads of the dataset itself count as polls too. Use SetStatusPolls once the
	// server is in use.
	StatusPolls int

	mu          sync.Mutex
	nextID      int
	dataStores  []*FakeDataStore
	credentials []*FakeCredential
	dataSources []*FakeDataSource
	datasets    []*FakeDataset
	associated  map[string][]string // credential id -> object ids
	statuses    map[string]*fakeStatus
	calls       map[string]int
}

// NewFakeDataRobot starts a fake server accepting token; it is closed with the test.
func NewFakeDataRobot(t testing.TB, token string) *FakeDataRobot {
	t.Helper()
	f := &FakeDataRobot{
		Token:      token,
		PageSize:   2,
		associated: map[string][]string{},
		statuses:   map[string]*fakeStatus{},
		calls:      map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+apiPrefix+"/externalDataStores/{$}", f.listDataStores)
	mux.HandleFunc("POST "+apiPrefix+"/externalDataStores/{$}", f.createDataStore)
	mux.HandleFunc("GET "+apiPrefix+"/credentials/{$}", f.listCredentials)
	mux.HandleFunc("POST "+apiPrefix+"/credentials/{$}", f.createCredential)
	mux.HandleFunc("GET "+apiPrefix+"/credentials/{id}/{$}", f.getCredential)
	mux.HandleFunc("PATCH "+apiPrefix+"/credentials/{id}/{$}", f.updateCredential)
	mux.HandleFunc("PATCH "+apiPrefix+"/credentials/{id}/associations/{$}", f.associate)
	mux.HandleFunc("GET "+apiPrefix+"/externalDataSources/{$}", f.listDataSources)
	mux.HandleFunc("POST "+apiPrefix+"/externalDataSources/{$}", f.createDataSource)
	mux.HandleFunc("GET "+apiPrefix+"/datasets/{$}", f.listDatasets)
	mux.HandleFunc("POST "+apiPrefix+"/datasets/fromDataSource/{$}", f.createDataset)
	mux.HandleFunc("GET "+apiPrefix+"/datasets/{id}/{$}", f.getDataset)
	mux.HandleFunc("PATCH "+apiPrefix+"/datasets/{id}/{$}", f.renameDataset)
	mux.HandleFunc("GET "+apiPrefix+"/status/{id}/{$}", f.status)

	f.Server = httptest.NewServer(f.authorize(mux))
	t.Cleanup(f.Server.Close)
	return f
}

// Endpoint is the API base URL of the fake.
func (f *FakeDataRobot) Endpoint() string {
	return f.Server.URL + apiPrefix
}

// Calls returns how often a route was served, keyed by its pattern without the API
// prefix, e.g. Calls("POST /credentials/{$}").
func (f *FakeDataRobot) Calls(methodAndPattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	method, path, _ := strings.Cut(methodAndPattern, " ")
	return f.calls[method+" "+apiPrefix+path]
}

// AddDataStore seeds a datastore and returns its id.
func (f *FakeDataRobot) AddDataStore(canonicalName string, fields ...FakeField) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds := &FakeDataStore{ID: f.newID("ds"), CanonicalName: canonicalName, Type: "dr-database-v1"}
	ds.Params.Fields = fields
	f.dataStores = append(f.dataStores, ds)
	return ds.ID
}

// AddCredential seeds a credential and returns its id.
func (f *FakeDataRobot) AddCredential(name, secret string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &FakeCredential{CredentialID: f.newID("cred"), Name: name, CredentialType: "databricks_access_token_account", DatabricksAccessToken: secret}
	f.credentials = append(f.credentials, c)
	return c.CredentialID
}

// AddDataset seeds a dataset and returns its id.
func (f *FakeDataRobot) AddDataset(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &FakeDataset{DatasetID: f.newID("dataset"), VersionID: f.newID("version"), Name: name, IsSnapshot: true, ProcessingState: "COMPLETED"}
	f.datasets = append(f.datasets, d)
	return d.DatasetID
}

// SetStatusPolls restarts every pending ingest job so that it completes after n more polls.
func (f *FakeDataRobot) SetStatusPolls(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusPolls = n
	for _, st := range f.statuses {
		st.polls = 0
	}
}

// CredentialSecret returns the stored secret of the credential with id.
func (f *FakeDataRobot) CredentialSecret(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.credentials {
		if c.CredentialID == id {
			return c.DatabricksAccessToken
		}
	}
	return ""
}

// Dataset returns a copy of the dataset with id.
func (f *FakeDataRobot) Dataset(id string) (FakeDataset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d := f.findDataset(id); d != nil {
		return *d, true
	}
	return FakeDataset{}, false
}

// AssociatedWith returns the object ids a credential has been associated with.
func (f *FakeDataRobot) AssociatedWith(credentialID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.associated[credentialID]...)
}

// Counts returns the number of datastores, credentials, datasources and datasets.
func (f *FakeDataRobot) Counts() (dataStores, credentials, dataSources, datasets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dataStores), len(f.credentials), len(f.dataSources), len(f.datasets)
}

func (f *FakeDataRobot) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%04d", prefix, f.nextID)
}

func (f *FakeDataRobot) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeDataRobot) record(r *http.Request) {
	f.calls[r.Pattern]++
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, kind, id string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("%s %s not found", kind, id)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
		return false
	}
	return true
}

// writePage writes items[offset:offset+PageSize] with a next link when more remain.
func writePage[T any](f *FakeDataRobot, w http.ResponseWriter, r *http.Request, items []T) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	end := offset + f.PageSize
	if end > len(items) {
		end = len(items)
	}
	if offset > len(items) {
		offset = len(items)
	}
	body := map[string]any{"data": items[offset:end], "count": end - offset, "next": nil}
	if end < len(items) {
		q := r.URL.Query()
		q.Set("offset", strconv.Itoa(end))
		body["next"] = f.Server.URL + r.URL.Path + "?" + q.Encode()
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeDataRobot) listDataStores(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	writePage(f, w, r, f.dataStores)
}

func (f *FakeDataRobot) createDataStore(w http.ResponseWriter, r *http.Request) {
	var ds FakeDataStore
	if !decode(w, r, &ds) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	ds.ID = f.newID("ds")
	f.dataStores = append(f.dataStores, &ds)
	writeJSON(w, http.StatusCreated, ds)
}

func (f *FakeDataRobot) listCredentials(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	writePage(f, w, r, f.credentials)
}

type credentialBody struct {
	Name                  string `json:"name"`
	CredentialType        string `json:"credentialType"`
	DatabricksAccessToken string `json:"databricksAccessToken"`
}

func (f *FakeDataRobot) createCredential(w http.ResponseWriter, r *http.Request) {
	var body credentialBody
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	c := &FakeCredential{
		CredentialID:          f.newID("cred"),
		Name:                  body.Name,
		CredentialType:        body.CredentialType,
		DatabricksAccessToken: body.DatabricksAccessToken,
	}
	f.credentials = append(f.credentials, c)
	writeJSON(w, http.StatusCreated, c)
}

func (f *FakeDataRobot) findCredential(id string) *FakeCredential {
	for _, c := range f.credentials {
		if c.CredentialID == id {
			return c
		}
	}
	return nil
}

func (f *FakeDataRobot) getCredential(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	if c := f.findCredential(r.PathValue("id")); c != nil {
		writeJSON(w, http.StatusOK, c)
		return
	}
	notFound(w, "credential", r.PathValue("id"))
}

func (f *FakeDataRobot) updateCredential(w http.ResponseWriter, r *http.Request) {
	var body credentialBody
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	c := f.findCredential(r.PathValue("id"))
	if c == nil {
		notFound(w, "credential", r.PathValue("id"))
		return
	}
	if body.DatabricksAccessToken != "" {
		c.DatabricksAccessToken = body.DatabricksAccessToken
	}
	if body.Name != "" {
		c.Name = body.Name
	}
	writeJSON(w, http.StatusOK, c)
}

func (f *FakeDataRobot) associate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CredentialsToAdd []struct {
			ObjectID   string `json:"objectId"`
			ObjectType string `json:"objectType"`
		} `json:"credentialsToAdd"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	if f.FailAssociations {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "association failed"})
		return
	}
	id := r.PathValue("id")
	if f.findCredential(id) == nil {
		notFound(w, "credential", id)
		return
	}
	for _, obj := range body.CredentialsToAdd {
		f.associated[id] = append(f.associated[id], obj.ObjectID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeDataRobot) listDataSources(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	writePage(f, w, r, f.dataSources)
}

func (f *FakeDataRobot) createDataSource(w http.ResponseWriter, r *http.Request) {
	var src FakeDataSource
	if !decode(w, r, &src) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	src.ID = f.newID("src")
	f.dataSources = append(f.dataSources, &src)
	writeJSON(w, http.StatusCreated, src)
}

func (f *FakeDataRobot) listDatasets(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	for _, d := range f.datasets {
		f.refreshState(d, false)
	}
	writePage(f, w, r, f.datasets)
}

// refreshState sets a dataset's processing state from its ingest job. With advance the
// read counts as a poll of the job.
func (f *FakeDataRobot) refreshState(d *FakeDataset, advance bool) {
	st, ok := f.statuses[d.statusID]
	if !ok || st.polls >= f.StatusPolls {
		d.ProcessingState = "COMPLETED"
		return
	}
	if advance {
		st.polls++
	}
	d.ProcessingState = "RUNNING"
}

func (f *FakeDataRobot) findDataset(id string) *FakeDataset {
	for _, d := range f.datasets {
		if d.DatasetID == id {
			return d
		}
	}
	return nil
}

func (f *FakeDataRobot) createDataset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DataSourceID string `json:"dataSourceId"`
		CredentialID string `json:"credentialId"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	d := &FakeDataset{
		DatasetID:    f.newID("dataset"),
		VersionID:    f.newID("version"),
		Name:         "Untitled dataset",
		IsSnapshot:   true,
		DataSourceID: body.DataSourceID,
		CredentialID: body.CredentialID,
	}
	statusID := f.newID("status")
	d.statusID = statusID
	f.statuses[statusID] = &fakeStatus{datasetID: d.DatasetID}
	f.refreshState(d, false)
	f.datasets = append(f.datasets, d)
	w.Header().Set("Location", f.Server.URL+apiPrefix+"/status/"+statusID+"/")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"catalogId":        d.DatasetID,
		"catalogVersionId": d.VersionID,
		"statusId":         statusID,
	})
}

func (f *FakeDataRobot) getDataset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	if d := f.findDataset(r.PathValue("id")); d != nil {
		f.refreshState(d, true)
		writeJSON(w, http.StatusOK, d)
		return
	}
	notFound(w, "dataset", r.PathValue("id"))
}

func (f *FakeDataRobot) renameDataset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	d := f.findDataset(r.PathValue("id"))
	if d == nil {
		notFound(w, "dataset", r.PathValue("id"))
		return
	}
	d.Name = body.Name
	f.refreshState(d, false)
	writeJSON(w, http.StatusOK, d)
}

func (f *FakeDataRobot) status(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(r)
	st, ok := f.statuses[r.PathValue("id")]
	if !ok {
		notFound(w, "status", r.PathValue("id"))
		return
	}
	if st.polls < f.StatusPolls {
		st.polls++
		writeJSON(w, http.StatusOK, map[string]string{"statusId": r.PathValue("id"), "status": "RUNNING"})
		return
	}
	w.Header().Set("Location", f.Server.URL+apiPrefix+"/datasets/"+st.datasetID+"/")
	w.WriteHeader(http.StatusSeeOther)
}
