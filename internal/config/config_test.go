package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsDefaults(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := New("")

	require.NoError(t, BindFlags(cmd, v))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, "./data/agraphstore", cfg.StorePath)
	assert.Equal(t, 2, cfg.SyncWithRemotes)
	assert.Empty(t, cfg.NodeID)
}

func TestBindFlagsOverriddenByFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := New("")

	require.NoError(t, BindFlags(cmd, v))
	require.NoError(t, cmd.Flags().Set("sync-with-remotes", "4"))
	require.NoError(t, cmd.Flags().Set("node-id", "abcd1234"))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.SyncWithRemotes)
	assert.Equal(t, "abcd1234", cfg.NodeID)
}
