// Package resolve implements the idempotent get-or-create (and get-replace-or-create)
// upserts of DataRobot resources. Every lookup must resolve to at most one resource.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datarobot-community/drdb-connect/internal/dr"
)

const (
	kindDatastore  = "datastore"
	kindCredential = "credential"
	kindDatasource = "datasource"
	kindDataset    = "dataset"

	// TypeAll lists datastores and datasources of every type.
	TypeAll = "all"
)

// Platform is the subset of the DataRobot API the resolvers need.
type Platform interface {
	ListDataStores(ctx context.Context, typ string) ([]dr.DataStore, error)
	CreateDataStore(ctx context.Context, req dr.CreateDataStoreRequest) (*dr.DataStore, error)
	ListCredentials(ctx context.Context) ([]dr.Credential, error)
	CreateCredential(ctx context.Context, req dr.CredentialRequest) (*dr.Credential, error)
	UpdateCredential(ctx context.Context, id string, req dr.CredentialRequest) (*dr.Credential, error)
	ListDataSources(ctx context.Context, typ string) ([]dr.DataSource, error)
	CreateDataSource(ctx context.Context, req dr.CreateDataSourceRequest) (*dr.DataSource, error)
	ListDatasets(ctx context.Context) ([]dr.Dataset, error)
	StartDatasetFromDataSource(ctx context.Context, req dr.CreateDatasetFromDataSourceRequest) (*dr.DatasetJob, error)
	RenameDataset(ctx context.Context, id, name string) error
	GetDataset(ctx context.Context, id string) (*dr.Dataset, error)
	WaitForStatus(ctx context.Context, statusURL string) error
	WaitForDataset(ctx context.Context, id string) (*dr.Dataset, error)
}

type Resolver struct {
	platform Platform
	logger   *slog.Logger
}

func New(platform Platform, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{platform: platform, logger: logger}
}

func isNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

type DatastoreSpec struct {
	CanonicalName string
	DriverID      string
	Type          string
	Fields        []dr.Field
	// Lookup overrides how an existing datastore is recognized. Defaults to ExactName(CanonicalName).
	Lookup *Matcher
}

// FindDatastore returns the one datastore (of any type) whose canonical name matches m.
func (r *Resolver) FindDatastore(ctx context.Context, m Matcher) (*dr.DataStore, error) {
	stores, err := r.platform.ListDataStores(ctx, TypeAll)
	if err != nil {
		return nil, fmt.Errorf("unable to list datastores: %w", err)
	}
	return findUnique(kindDatastore, stores, func(d *dr.DataStore) string { return d.CanonicalName }, m)
}

// Datastore returns the datastore registered under spec.CanonicalName, creating it if absent.
func (r *Resolver) Datastore(ctx context.Context, spec DatastoreSpec) (*dr.DataStore, error) {
	lookup := ExactName(spec.CanonicalName)
	if spec.Lookup != nil {
		lookup = *spec.Lookup
	}

	existing, err := r.FindDatastore(ctx, lookup)
	if err == nil {
		r.logger.Info("using existing datastore", "datastore_id", existing.ID, "canonical_name", existing.CanonicalName)
		for _, want := range spec.Fields {
			if got, _ := existing.Field(want.ID); got != want.Value {
				r.logger.Warn("existing datastore has a different field value",
					"datastore_id", existing.ID, "field", want.ID, "value", got, "expected_value", want.Value)
			}
		}
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	created, err := r.platform.CreateDataStore(ctx, dr.CreateDataStoreRequest{
		Type:          spec.Type,
		CanonicalName: spec.CanonicalName,
		Params: dr.DataStoreParams{
			DriverID: spec.DriverID,
			Fields:   spec.Fields,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create datastore %q: %w", spec.CanonicalName, err)
	}
	r.logger.Info("created datastore", "datastore_id", created.ID, "canonical_name", spec.CanonicalName)
	return created, nil
}

type CredentialSpec struct {
	Name   string
	Type   string
	Secret string
}

func (s CredentialSpec) request() (dr.CredentialRequest, error) {
	switch s.Type {
	case dr.CredentialTypeDatabricksAccessToken:
		return dr.CredentialRequest{
			Name:                  s.Name,
			CredentialType:        s.Type,
			DatabricksAccessToken: s.Secret,
		}, nil
	default:
		return dr.CredentialRequest{}, fmt.Errorf("unsupported credential type %q", s.Type)
	}
}

// Credential finds the credential named spec.Name and replaces its secret, or creates it.
func (r *Resolver) Credential(ctx context.Context, spec CredentialSpec) (*dr.Credential, error) {
	req, err := spec.request()
	if err != nil {
		return nil, err
	}

	creds, err := r.platform.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list credentials: %w", err)
	}
	existing, err := findUnique(kindCredential, creds, func(c *dr.Credential) string { return c.Name }, ExactName(spec.Name))
	if err == nil {
		updated, updateErr := r.platform.UpdateCredential(ctx, existing.CredentialID, req)
		if updateErr == nil {
			r.logger.Info("replaced credential secret", "credential_id", updated.CredentialID, "name", spec.Name)
			return updated, nil
		}
		if !dr.IsNotFound(updateErr) {
			return nil, fmt.Errorf("unable to replace credential %q: %w", spec.Name, updateErr)
		}
		// deleted since it was listed
		err = &NotFoundError{Kind: kindCredential, Query: ExactName(spec.Name).String()}
	}

	if !isNotFound(err) {
		return nil, err
	}

	created, err := r.platform.CreateCredential(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("unable to create credential %q: %w", spec.Name, err)
	}
	r.logger.Info("created credential", "credential_id", created.CredentialID, "name", spec.Name)
	return created, nil
}

type DatasourceSpec struct {
	CanonicalName string
	Type          string
	DataStoreID   string
	Catalog       string
	Schema        string
	Table         string
}

// Datasource returns the datasource registered under spec.CanonicalName, creating it if absent.
func (r *Resolver) Datasource(ctx context.Context, spec DatasourceSpec) (*dr.DataSource, error) {
	sources, err := r.platform.ListDataSources(ctx, TypeAll)
	if err != nil {
		return nil, fmt.Errorf("unable to list datasources: %w", err)
	}
	existing, err := findUnique(kindDatasource, sources, func(s *dr.DataSource) string { return s.CanonicalName }, ExactName(spec.CanonicalName))
	if err == nil {
		if existing.Params.DataStoreID != spec.DataStoreID {
			r.logger.Warn("existing datasource is bound to a different datastore",
				"datasource_id", existing.ID, "datastore_id", existing.Params.DataStoreID, "expected_datastore_id", spec.DataStoreID)
		}
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	created, err := r.platform.CreateDataSource(ctx, dr.CreateDataSourceRequest{
		Type:          spec.Type,
		CanonicalName: spec.CanonicalName,
		Params: dr.DataSourceParams{
			DataStoreID: spec.DataStoreID,
			Catalog:     spec.Catalog,
			Schema:      spec.Schema,
			Table:       spec.Table,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create datasource %q: %w", spec.CanonicalName, err)
	}
	r.logger.Info("created datasource", "datasource_id", created.ID, "canonical_name", spec.CanonicalName)
	return created, nil
}

type DatasetSpec struct {
	Name         string
	DataSourceID string
	CredentialID string
}

// Dataset returns the catalog dataset named spec.Name, snapshotting the datasource into a
// new dataset with that name if absent. The new dataset is named before its ingest is
// waited on, so a run that fails while waiting leaves a dataset the next run finds.
func (r *Resolver) Dataset(ctx context.Context, spec DatasetSpec) (*dr.Dataset, error) {
	datasets, err := r.platform.ListDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list datasets: %w", err)
	}
	existing, err := findUnique(kindDataset, datasets, func(d *dr.Dataset) string { return d.Name }, ExactName(spec.Name))
	if err == nil {
		if !existing.Ingesting() {
			return existing, nil
		}
		r.logger.Info("waiting for existing dataset to finish ingesting", "dataset_id", existing.DatasetID, "name", spec.Name)
		return r.platform.WaitForDataset(ctx, existing.DatasetID)
	}
	if !isNotFound(err) {
		return nil, err
	}

	job, err := r.platform.StartDatasetFromDataSource(ctx, dr.CreateDatasetFromDataSourceRequest{
		DataSourceID: spec.DataSourceID,
		CredentialID: spec.CredentialID,
		DoSnapshot:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create dataset %q: %w", spec.Name, err)
	}
	if err := r.platform.RenameDataset(ctx, job.DatasetID, spec.Name); err != nil {
		return nil, fmt.Errorf("unable to name dataset %s %q: %w", job.DatasetID, spec.Name, err)
	}
	if job.StatusURL != "" {
		if err := r.platform.WaitForStatus(ctx, job.StatusURL); err != nil {
			return nil, fmt.Errorf("dataset %s (%q) did not finish ingesting: %w", job.DatasetID, spec.Name, err)
		}
	}
	created, err := r.platform.GetDataset(ctx, job.DatasetID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("created dataset", "dataset_id", created.DatasetID, "name", spec.Name)
	return created, nil
}
