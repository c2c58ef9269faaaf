package dr

import (
	"context"
	"net/http"
	"net/url"
)

// Field is one connection parameter of a JDBC/driver based datastore.
type Field struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type DataStoreParams struct {
	DriverID string  `json:"driverId,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

// DataStore is an external data connection registered in DataRobot.
type DataStore struct {
	ID            string          `json:"id"`
	CanonicalName string          `json:"canonicalName"`
	Type          string          `json:"type"`
	Creator       string          `json:"creator,omitempty"`
	Updated       string          `json:"updated,omitempty"`
	Params        DataStoreParams `json:"params"`
}

// Field returns the value of the field with the given id.
func (d *DataStore) Field(id string) (string, bool) {
	for _, f := range d.Params.Fields {
		if f.ID == id {
			return f.Value, true
		}
	}
	return "", false
}

type CreateDataStoreRequest struct {
	Type          string          `json:"type"`
	CanonicalName string          `json:"canonicalName"`
	Params        DataStoreParams `json:"params"`
}

// ListDataStores lists datastores of the given type; "all" includes every type.
func (c *Client) ListDataStores(ctx context.Context, typ string) ([]DataStore, error) {
	query := url.Values{}
	if typ != "" {
		query.Set("type", typ)
	}
	return listAll[DataStore](ctx, c, "externalDataStores/", query)
}

func (c *Client) CreateDataStore(ctx context.Context, req CreateDataStoreRequest) (*DataStore, error) {
	var ds DataStore
	if _, err := c.do(ctx, http.MethodPost, "externalDataStores/", nil, req, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}
