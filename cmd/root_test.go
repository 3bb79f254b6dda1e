package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootInitializesConfigBeforeRun(t *testing.T) {
	ts, _ := fakeServer(t, false)
	viper.Set("client.server_url", ts.URL)
	viper.Set("client.no_color", true)
	t.Cleanup(func() { viper.Set("client.server_url", "") })

	require.NotNil(t, rootCmd.PersistentPreRunE)

	_, err := runCommand(t, "scan", "http://target.example.com/graphql")
	require.NoError(t, err)

	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	require.NotNil(t, log)
}
