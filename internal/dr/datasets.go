package dr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Dataset is an entry of the DataRobot AI Catalog.
type Dataset struct {
	DatasetID       string `json:"datasetId"`
	VersionID       string `json:"versionId"`
	Name            string `json:"name"`
	ProcessingState string `json:"processingState,omitempty"`
	IsSnapshot      bool   `json:"isSnapshot"`
	CreationDate    string `json:"creationDate,omitempty"`
}

// Processing states of a catalog dataset.
const (
	ProcessingRunning   = "RUNNING"
	ProcessingCompleted = "COMPLETED"
	ProcessingFailed    = "ERROR"
)

// Ingesting reports whether the dataset's data is still being loaded.
func (d *Dataset) Ingesting() bool {
	return strings.EqualFold(d.ProcessingState, ProcessingRunning)
}

type CreateDatasetFromDataSourceRequest struct {
	DataSourceID string `json:"dataSourceId"`
	CredentialID string `json:"credentialId,omitempty"`
	DoSnapshot   bool   `json:"doSnapshot"`
}

// asyncCreateResponse is the 202 body of catalog item creation.
type asyncCreateResponse struct {
	CatalogID        string `json:"catalogId"`
	CatalogVersionID string `json:"catalogVersionId"`
	StatusID         string `json:"statusId"`
}

type updateDatasetRequest struct {
	Name string `json:"name"`
}

func datasetPath(id string) string {
	return "datasets/" + url.PathEscape(id) + "/"
}

func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	return listAll[Dataset](ctx, c, "datasets/", nil)
}

func (c *Client) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	var ds Dataset
	if _, err := c.do(ctx, http.MethodGet, datasetPath(id), nil, nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// RenameDataset sets the display name of a dataset.
func (c *Client) RenameDataset(ctx context.Context, id, name string) error {
	_, err := c.do(ctx, http.MethodPatch, datasetPath(id), nil, updateDatasetRequest{Name: name}, nil)
	return err
}

// DatasetJob is an accepted dataset creation whose ingest may still be running.
type DatasetJob struct {
	DatasetID string
	VersionID string
	// StatusURL is empty when the response named no status to poll.
	StatusURL string
}

// StartDatasetFromDataSource asks DataRobot to snapshot a datasource into a new catalog
// dataset. The dataset exists (and can be renamed) as soon as this returns; use
// WaitForStatus on the job's StatusURL to wait for its ingest.
func (c *Client) StartDatasetFromDataSource(ctx context.Context, req CreateDatasetFromDataSourceRequest) (*DatasetJob, error) {
	var created asyncCreateResponse
	resp, err := c.do(ctx, http.MethodPost, "datasets/fromDataSource/", nil, req, &created)
	if err != nil {
		return nil, err
	}
	if created.CatalogID == "" {
		return nil, fmt.Errorf("dataset creation from datasource %s returned no catalog id", req.DataSourceID)
	}

	job := &DatasetJob{
		DatasetID: created.CatalogID,
		VersionID: created.CatalogVersionID,
		StatusURL: resp.Header.Get("Location"),
	}
	if job.StatusURL == "" && created.StatusID != "" {
		job.StatusURL = statusPath(created.StatusID)
	}
	return job, nil
}
