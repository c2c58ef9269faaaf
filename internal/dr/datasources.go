package dr

import (
	"context"
	"net/http"
	"net/url"
)

type DataSourceParams struct {
	DataStoreID string `json:"dataStoreId"`
	Catalog     string `json:"catalog,omitempty"`
	Schema      string `json:"schema,omitempty"`
	Table       string `json:"table,omitempty"`
}

// DataSource describes one table reachable through a datastore.
type DataSource struct {
	ID            string           `json:"id"`
	CanonicalName string           `json:"canonicalName"`
	Type          string           `json:"type"`
	Creator       string           `json:"creator,omitempty"`
	Params        DataSourceParams `json:"params"`
}

type CreateDataSourceRequest struct {
	Type          string           `json:"type"`
	CanonicalName string           `json:"canonicalName"`
	Params        DataSourceParams `json:"params"`
}

func (c *Client) ListDataSources(ctx context.Context, typ string) ([]DataSource, error) {
	query := url.Values{}
	if typ != "" {
		query.Set("type", typ)
	}
	return listAll[DataSource](ctx, c, "externalDataSources/", query)
}

func (c *Client) CreateDataSource(ctx context.Context, req CreateDataSourceRequest) (*DataSource, error) {
	var src DataSource
	if _, err := c.do(ctx, http.MethodPost, "externalDataSources/", nil, req, &src); err != nil {
		return nil, err
	}
	return &src, nil
}
