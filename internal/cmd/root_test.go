package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datarobot-community/drdb-connect/internal/utils"
)

func TestFlagsOverrideConfig(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	require.NoError(t, flags.Set("dbx-cluster-id", "0123-456789-abcdefgh"))
	require.NoError(t, flags.Set("status-timeout", "3m"))
	require.NoError(t, flags.Set("ensure-cluster-running", "true"))

	config, err := utils.Decode(v)
	require.NoError(t, err)
	assert.Equal(t, "0123-456789-abcdefgh", config.DbxClusterId)
	assert.Equal(t, 3*time.Minute, config.StatusTimeout)
	assert.True(t, config.EnsureClusterRunning)
	assert.Equal(t, utils.DefaultDatastoreName, config.DatastoreName)

	opts := connectOptions(config)
	assert.Equal(t, utils.DefaultDatastoreName, opts.DatastoreName)
	assert.Equal(t, utils.DefaultCredentialName, opts.CredentialName)
	assert.True(t, opts.EnsureClusterRunning)
	assert.Equal(t, 3*time.Minute, opts.StatusTimeout)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"connect", "reconnect", "dataset", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
