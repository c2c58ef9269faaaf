package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultDREndpoint     = "https://app.datarobot.com/api/v2"
	DefaultDatastoreName  = "DBDRConnect Datastore"
	DefaultCredentialName = "DBDR Credentials"
	DefaultStatusTimeout  = 10 * time.Minute
)

type Config struct {
	DrEndpoint           string        `mapstructure:"dr_endpoint"`
	DrToken              string        `mapstructure:"dr_token"`
	DbxHost              string        `mapstructure:"dbx_host"`
	DbxToken             string        `mapstructure:"dbx_token"`
	DbxClusterId         string        `mapstructure:"dbx_cluster_id"`
	DbxProfile           string        `mapstructure:"dbx_profile"`
	DatastoreName        string        `mapstructure:"datastore_name"`
	CredentialName       string        `mapstructure:"credential_name"`
	EnsureClusterRunning bool          `mapstructure:"ensure_cluster_running"`
	StatusTimeout        time.Duration `mapstructure:"status_timeout"`
}

// ConfigNotFound is a custom error type for configuration not found errors
type ConfigNotFound struct {
	Message string
}

func (e *ConfigNotFound) Error() string {
	return e.Message
}

// homeDir returns the user's home directory, honoring USERPROFILE on Windows.
func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE")
	}
	return os.Getenv("HOME")
}

// NewViper returns a viper instance with the drdbx defaults and DRDBX_* environment lookup.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("drdbx") // Config file name (without extension)
	v.SetConfigType("yaml")  // Config file format
	v.AddConfigPath(filepath.Join(homeDir(), ".drdbx"))

	v.SetDefault("dr_endpoint", DefaultDREndpoint)
	v.SetDefault("dr_token", "")
	v.SetDefault("dbx_host", "")
	v.SetDefault("dbx_token", "")
	v.SetDefault("dbx_cluster_id", "")
	v.SetDefault("dbx_profile", "")
	v.SetDefault("datastore_name", DefaultDatastoreName)
	v.SetDefault("credential_name", DefaultCredentialName)
	v.SetDefault("ensure_cluster_running", false)
	v.SetDefault("status_timeout", DefaultStatusTimeout)

	v.SetEnvPrefix("DRDBX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// InitConfig reads in the configuration file and returns a Config object.
// An empty configFile searches the default location ($HOME/.drdbx/drdbx.yaml).
func InitConfig(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigNotFound{Message: "no config file found"}
		}
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	return Decode(v)
}

// Decode unmarshals whatever viper currently holds (defaults, env, bound flags, file).
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %v", err)
	}
	return &config, nil
}

// AmbientDataRobot finds the endpoint and token the DataRobot SDKs would use when no
// client is configured explicitly: DATAROBOT_ENDPOINT/DATAROBOT_API_TOKEN first, then
// the drconfig.yaml file (DATAROBOT_CONFIG_FILE or $HOME/.config/datarobot/drconfig.yaml).
func AmbientDataRobot() (endpoint string, token string, err error) {
	endpoint = os.Getenv("DATAROBOT_ENDPOINT")
	token = os.Getenv("DATAROBOT_API_TOKEN")
	if endpoint != "" && token != "" {
		return endpoint, token, nil
	}

	path := os.Getenv("DATAROBOT_CONFIG_FILE")
	if path == "" {
		path = filepath.Join(homeDir(), ".config", "datarobot", "drconfig.yaml")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return "", "", &ConfigNotFound{
			Message: fmt.Sprintf("no DataRobot client configured: set DATAROBOT_ENDPOINT and DATAROBOT_API_TOKEN or create %s", path),
		}
	}
	if endpoint == "" {
		endpoint = v.GetString("endpoint")
	}
	if token == "" {
		token = v.GetString("token")
	}
	if endpoint == "" {
		endpoint = DefaultDREndpoint
	}
	if token == "" {
		return "", "", &ConfigNotFound{Message: fmt.Sprintf("no DataRobot token in %s", path)}
	}
	return endpoint, token, nil
}
