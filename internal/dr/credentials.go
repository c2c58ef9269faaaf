package dr

import (
	"context"
	"net/http"
	"net/url"
)

const (
	CredentialTypeDatabricksAccessToken = "databricks_access_token_account"

	// ObjectTypeDataConnection is the association object type of a datastore.
	ObjectTypeDataConnection = "dataconnection"
)

type Credential struct {
	CredentialID   string `json:"credentialId"`
	Name           string `json:"name"`
	CredentialType string `json:"credentialType"`
	Description    string `json:"description,omitempty"`
	CreationDate   string `json:"creationDate,omitempty"`
}

// CredentialRequest is the body of a create or update. Only the secret fields matching
// CredentialType are sent.
type CredentialRequest struct {
	Name                  string `json:"name,omitempty"`
	CredentialType        string `json:"credentialType,omitempty"`
	Description           string `json:"description,omitempty"`
	DatabricksAccessToken string `json:"databricksAccessToken,omitempty"`
}

type CredentialAssociation struct {
	ObjectID   string `json:"objectId"`
	ObjectType string `json:"objectType"`
}

type associationsRequest struct {
	CredentialsToAdd []CredentialAssociation `json:"credentialsToAdd"`
}

func credentialPath(id string) string {
	return "credentials/" + url.PathEscape(id) + "/"
}

func (c *Client) ListCredentials(ctx context.Context) ([]Credential, error) {
	return listAll[Credential](ctx, c, "credentials/", nil)
}

func (c *Client) GetCredential(ctx context.Context, id string) (*Credential, error) {
	var cred Credential
	if _, err := c.do(ctx, http.MethodGet, credentialPath(id), nil, nil, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (c *Client) CreateCredential(ctx context.Context, req CredentialRequest) (*Credential, error) {
	var cred Credential
	if _, err := c.do(ctx, http.MethodPost, "credentials/", nil, req, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// UpdateCredential replaces the stored secret (and any other non-empty field) of a credential.
func (c *Client) UpdateCredential(ctx context.Context, id string, req CredentialRequest) (*Credential, error) {
	var cred Credential
	if _, err := c.do(ctx, http.MethodPatch, credentialPath(id), nil, req, &cred); err != nil {
		return nil, err
	}
	if cred.CredentialID == "" {
		// some deployments answer 204
		return c.GetCredential(ctx, id)
	}
	return &cred, nil
}

// AssociateCredential links a credential to objects (e.g. a datastore) so it is offered
// as the default credential for them.
func (c *Client) AssociateCredential(ctx context.Context, credentialID string, objects ...CredentialAssociation) error {
	_, err := c.do(ctx, http.MethodPatch, credentialPath(credentialID)+"associations/", nil,
		associationsRequest{CredentialsToAdd: objects}, nil)
	return err
}
