package dbx

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// HTTPPathFieldID and ServerHostnameFieldID are the DataRobot datastore field ids
	// the Databricks JDBC driver reads its connection parameters from.
	HTTPPathFieldID       = "dbx.http_path"
	ServerHostnameFieldID = "dbx.server_hostname"

	httpPathPrefix = "sql/protocolv1/o/"
)

// hostPattern matches a Databricks workspace URL such as
// https://adb-1234567890123456.7.azuredatabricks.net.
// The first DNS label must contain at least one '-'; the token after the first '-'
// is the workspace (organization) id.
var hostPattern = regexp.MustCompile(
	`^(?P<scheme>https?)://` +
		`(?P<hostname>` +
		`(?P<prefix>[A-Za-z0-9]+)-(?P<workspace>[A-Za-z0-9]+)(?:-[A-Za-z0-9]+)*` +
		`(?:\.[A-Za-z0-9-]+)*` +
		`(?::[0-9]+)?` +
		`)/?$`)

var httpPathPattern = regexp.MustCompile(
	`^/?sql/protocolv1/o/(?P<workspace>[A-Za-z0-9]+)/(?P<cluster>[A-Za-z0-9-]+)/?$`)

var clusterIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// HostFormatError reports a workspace URL that cannot be turned into connection parameters.
type HostFormatError struct {
	Host   string
	Reason string
}

func (e *HostFormatError) Error() string {
	return fmt.Sprintf("malformed Databricks host %q: %s", e.Host, e.Reason)
}

// HTTPPathFormatError reports an HTTP path that is not a cluster protocolv1 path.
type HTTPPathFormatError struct {
	Path string
}

func (e *HTTPPathFormatError) Error() string {
	return fmt.Sprintf("malformed Databricks HTTP path %q: expected %s<workspace-id>/<cluster-id>", e.Path, httpPathPrefix)
}

// HostInfo is the parsed form of a workspace URL.
type HostInfo struct {
	Scheme      string
	Hostname    string // host with the scheme and any trailing slash removed
	WorkspaceID string
}

// ParseHost validates a workspace URL and extracts the server hostname and workspace id.
func ParseHost(host string) (HostInfo, error) {
	host = strings.TrimSpace(host)
	if !strings.Contains(host, "://") {
		return HostInfo{}, &HostFormatError{Host: host, Reason: "missing http(s):// scheme"}
	}
	m := hostPattern.FindStringSubmatch(host)
	if m == nil {
		return HostInfo{}, &HostFormatError{
			Host:   host,
			Reason: "expected https://<prefix>-<workspace-id>[.<domain>...] with no path",
		}
	}
	return HostInfo{
		Scheme:      m[hostPattern.SubexpIndex("scheme")],
		Hostname:    m[hostPattern.SubexpIndex("hostname")],
		WorkspaceID: m[hostPattern.SubexpIndex("workspace")],
	}, nil
}

// HostURL rebuilds a workspace URL from a stored server hostname.
func HostURL(serverHostname string) string {
	return "https://" + strings.TrimSuffix(serverHostname, "/")
}

// HTTPPath returns the cluster HTTP path for a workspace and cluster.
func HTTPPath(workspaceID, clusterID string) string {
	return httpPathPrefix + workspaceID + "/" + clusterID
}

// ParseHTTPPath is the inverse of HTTPPath.
func ParseHTTPPath(path string) (workspaceID string, clusterID string, err error) {
	m := httpPathPattern.FindStringSubmatch(strings.TrimSpace(path))
	if m == nil {
		return "", "", &HTTPPathFormatError{Path: path}
	}
	return m[httpPathPattern.SubexpIndex("workspace")], m[httpPathPattern.SubexpIndex("cluster")], nil
}

// ConnectionParams are the values stored on a DataRobot datastore for a Databricks cluster.
type ConnectionParams struct {
	Host           string // normalized workspace URL: scheme and hostname only
	ServerHostname string
	WorkspaceID    string
	ClusterID      string
	HTTPPath       string
}

// DeriveConnectionParams computes the datastore fields for a workspace URL and cluster id.
func DeriveConnectionParams(host, clusterID string) (ConnectionParams, error) {
	info, err := ParseHost(host)
	if err != nil {
		return ConnectionParams{}, err
	}
	if !clusterIDPattern.MatchString(clusterID) {
		return ConnectionParams{}, fmt.Errorf("malformed Databricks cluster id %q", clusterID)
	}
	return ConnectionParams{
		Host:           info.Scheme + "://" + info.Hostname,
		ServerHostname: info.Hostname,
		WorkspaceID:    info.WorkspaceID,
		ClusterID:      clusterID,
		HTTPPath:       HTTPPath(info.WorkspaceID, clusterID),
	}, nil
}

// ParamsFromFields reverses DeriveConnectionParams given the stored server hostname and HTTP path.
func ParamsFromFields(serverHostname, httpPath string) (ConnectionParams, error) {
	_, clusterID, err := ParseHTTPPath(httpPath)
	if err != nil {
		return ConnectionParams{}, err
	}
	return DeriveConnectionParams(HostURL(serverHostname), clusterID)
}
