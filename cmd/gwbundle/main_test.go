package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainExecute(t *testing.T) {
	rootCmd.SetArgs([]string{"--help"})
	main()
}

func TestServeCmd_PreRun(t *testing.T) {
	require.NoError(t, serveCmd.Flags().Set("host", "1.1.1.1"))
	require.NoError(t, serveCmd.Flags().Set("port", "9999"))
	require.NoError(t, serveCmd.Flags().Set("timeout", "5s"))
	require.NoError(t, serveCmd.Flags().Set("log-level", "debug"))
	require.NoError(t, serveCmd.Flags().Set("source-dir", "/srv/gateway"))

	serveCmd.PreRun(serveCmd, nil)
	assert.Equal(t, "1.1.1.1", cfg.Server.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "debug", cfg.Server.LogLevel)

	opts := serverOptions()
	assert.Equal(t, "/srv/gateway", opts.SourceDir)
	assert.Equal(t, 5*time.Second, opts.Timeout)
}

func TestStringSetting(t *testing.T) {
	cmd := explodeCmd
	assert.Equal(t, "", stringSetting(cmd, "folder", ""))
	assert.Equal(t, "/api", stringSetting(cmd, "folder", "/api"))

	require.NoError(t, cmd.Flags().Set("folder", "/lib"))
	t.Cleanup(func() {
		_ = cmd.Flags().Set("folder", "")
		cmd.Flags().Lookup("folder").Changed = false
	})
	assert.Equal(t, "/lib", stringSetting(cmd, "folder", "/api"))
}
