// Package config loads agraphstore's server configuration from flags,
// environment variables, and an optional config file, using viper bound
// to a cobra command the way the reference CLI binds its start command.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dreamware/agraphstore/internal/agraphstore"
)

const envPrefix = "AGRAPHSTORE"

// Keys are the viper keys every flag is bound to; also usable as the
// corresponding environment variable suffix.
const (
	KeyServerURL       = "server_url"
	KeyInitialRemotes  = "initial_remote_addresses"
	KeyStorePath       = "store_path"
	KeySyncWithRemotes = "sync_with_remotes"
	KeyNodeID          = "node_id"
	KeyGossipInterval  = "gossip_interval"
	KeyRetryInterval   = "retry_interval"
	KeyLogLevel        = "log_level"
)

// BindFlags registers every configuration flag on cmd and binds it to v,
// mirroring the reference CLI's BindFlag-per-setting pattern.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()

	flags.String("listen", "http://127.0.0.1:8080", "this instance's advertised base URL")
	flags.StringSlice("remote", nil, "seed peer base URL (repeatable)")
	flags.String("store-path", "./data/agraphstore", "directory for the durable mutation log")
	flags.Int("sync-with-remotes", 2, "number of peers to synchronously replicate each mutation to")
	flags.String("node-id", "", "stable 8-character node identifier; random if unset")
	flags.Duration("gossip-interval", 30*time.Second, "peer-membership anti-entropy period")
	flags.Duration("retry-interval", 10*time.Second, "pending-mutation retry period")
	flags.String("log-level", "info", "zap log level")

	bindings := map[string]string{
		KeyServerURL:       "listen",
		KeyInitialRemotes:  "remote",
		KeyStorePath:       "store-path",
		KeySyncWithRemotes: "sync-with-remotes",
		KeyNodeID:          "node-id",
		KeyGossipInterval:  "gossip-interval",
		KeyRetryInterval:   "retry-interval",
		KeyLogLevel:        "log-level",
	}

	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return errors.Wrapf(err, "binding flag %q", flag)
		}
	}

	return nil
}

// New builds a viper instance configured to read AGRAPHSTORE_-prefixed
// environment variables and an optional config file, matching the pack's
// env-prefixed, flag-overridable configuration convention.
func New(configFile string) *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	return v
}

// Load reads v's bound values into an agraphstore.Config. The config file
// is read only when one was set on v; a set file that cannot be read is an
// error.
func Load(v *viper.Viper) (agraphstore.Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return agraphstore.Config{}, errors.Wrap(err, "reading config file")
		}
	}

	return agraphstore.Config{
		ServerURL:              v.GetString(KeyServerURL),
		InitialRemoteAddresses: v.GetStringSlice(KeyInitialRemotes),
		StorePath:              v.GetString(KeyStorePath),
		SyncWithRemotes:        v.GetInt(KeySyncWithRemotes),
		NodeID:                 v.GetString(KeyNodeID),
		GossipInterval:         v.GetDuration(KeyGossipInterval),
		RetryInterval:          v.GetDuration(KeyRetryInterval),
	}, nil
}
