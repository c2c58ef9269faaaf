package dbx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHost(t *testing.T) {
	tests := []struct {
		host        string
		hostname    string
		workspaceID string
	}{
		{"https://foo-bar123.cloud.example.com", "foo-bar123.cloud.example.com", "bar123"},
		{"https://adb-1234567890123456.7.azuredatabricks.net", "adb-1234567890123456.7.azuredatabricks.net", "1234567890123456"},
		{"https://adb-1234567890123456.7.azuredatabricks.net/", "adb-1234567890123456.7.azuredatabricks.net", "1234567890123456"},
		{"https://dbc-a1b2c3d4-5e6f.cloud.databricks.com", "dbc-a1b2c3d4-5e6f.cloud.databricks.com", "a1b2c3d4"},
		{"http://foo-bar:8443", "foo-bar:8443", "bar"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			info, err := ParseHost(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.hostname, info.Hostname)
			assert.Equal(t, tt.workspaceID, info.WorkspaceID)
		})
	}
}

func TestParseHostRejectsMalformed(t *testing.T) {
	for _, host := range []string{
		"",
		"foo-bar123.cloud.example.com",
		"https://",
		"https://nodash.cloud.example.com",
		"https://foo-bar123.cloud.example.com/some/path",
		"ftp://foo-bar123.example.com",
		"https://-bar.example.com",
	} {
		t.Run(host, func(t *testing.T) {
			_, err := ParseHost(host)
			var formatErr *HostFormatError
			require.True(t, errors.As(err, &formatErr), "expected HostFormatError, got %v", err)
		})
	}
}

func TestDeriveConnectionParams(t *testing.T) {
	params, err := DeriveConnectionParams("https://foo-bar123.cloud.example.com", "5678")
	require.NoError(t, err)
	assert.Equal(t, "bar123", params.WorkspaceID)
	assert.Equal(t, "sql/protocolv1/o/bar123/5678", params.HTTPPath)
	assert.Equal(t, "foo-bar123.cloud.example.com", params.ServerHostname)
	assert.Equal(t, "5678", params.ClusterID)

	_, err = DeriveConnectionParams("https://foo-bar123.cloud.example.com", "")
	require.Error(t, err)
	_, err = DeriveConnectionParams("https://foo-bar123.cloud.example.com", "a/b")
	require.Error(t, err)
}

func TestParseHTTPPath(t *testing.T) {
	ws, cluster, err := ParseHTTPPath("sql/protocolv1/o/bar123/0123-456789-abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, "bar123", ws)
	assert.Equal(t, "0123-456789-abcdefgh", cluster)

	_, cluster, err = ParseHTTPPath("/sql/protocolv1/o/1234567890123456/5678")
	require.NoError(t, err)
	assert.Equal(t, "5678", cluster)

	_, _, err = ParseHTTPPath("/sql/1.0/warehouses/abc123")
	var pathErr *HTTPPathFormatError
	require.ErrorAs(t, err, &pathErr)
}

func TestDeriveConnectionParamsNormalizesHost(t *testing.T) {
	params, err := DeriveConnectionParams("  https://foo-bar123.cloud.example.com/ ", "5678")
	require.NoError(t, err)
	assert.Equal(t, "https://foo-bar123.cloud.example.com", params.Host)
	assert.Equal(t, "foo-bar123.cloud.example.com", params.ServerHostname)
}

func TestParamsFromFieldsRoundTrip(t *testing.T) {
	for _, host := range []string{
		"https://adb-1234567890123456.7.azuredatabricks.net",
		"https://adb-1234567890123456.7.azuredatabricks.net/",
	} {
		t.Run(host, func(t *testing.T) {
			original, err := DeriveConnectionParams(host, "0123-456789-abcdefgh")
			require.NoError(t, err)

			rebuilt, err := ParamsFromFields(original.ServerHostname, original.HTTPPath)
			require.NoError(t, err)
			assert.Equal(t, original, rebuilt)
		})
	}
}

func TestTableFullName(t *testing.T) {
	assert.Equal(t, "main.sales.orders", TableFullName("main", "sales", "orders"))
}
