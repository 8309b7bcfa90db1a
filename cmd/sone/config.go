// Config loading for the sone CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/sone/internal/logging"
	"github.com/mesh-intelligence/sone/internal/paths"
	"github.com/mesh-intelligence/sone/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyDataDir             = "data_dir"
	cfgKeyLogLevel            = "log_level"
	cfgKeyRelays              = "relays"
	cfgKeyRelayTimeout        = "relay_timeout"
	cfgKeyKeys                = "keys"
	cfgKeyIdentityContext     = "identity.context"
	cfgKeyIdentityInterval    = "identity.poll_interval"
	cfgKeyContentInterval     = "content.poll_interval"
	cfgKeyQuietPeriod         = "publish.quiet_period"
	cfgKeyCheckInterval       = "publish.check_interval"
	cfgKeyMetricsAddr         = "metrics_addr"
	cfgKeyBackend             = "backend"
	defaultRelayTimeoutString = "10s"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# sone configuration

# Storage backend and data directory (data_dir is overridable by --data-dir)
backend: sqlite
# data_dir:

log_level: info

# Nostr relays documents are fetched from and published to
relays: []
relay_timeout: 10s

# Hex secret keys of the identities this node controls
keys: []

identity:
  context: Sone
  poll_interval: 15m

content:
  poll_interval: 10m

publish:
  quiet_period: 1m
  check_interval: 1s

# Address of the Prometheus endpoint, empty to disable
metrics_addr: ""
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyLogLevel, logging.LevelInfo)
	v.SetDefault(cfgKeyRelays, []string{})
	v.SetDefault(cfgKeyRelayTimeout, defaultRelayTimeoutString)
	v.SetDefault(cfgKeyKeys, []string{})
	v.SetDefault(cfgKeyIdentityContext, types.DefaultIdentityContext)
	v.SetDefault(cfgKeyIdentityInterval, types.DefaultIdentityPollInterval)
	v.SetDefault(cfgKeyContentInterval, types.DefaultContentPollInterval)
	v.SetDefault(cfgKeyQuietPeriod, types.DefaultQuietPeriod)
	v.SetDefault(cfgKeyCheckInterval, types.DefaultCheckInterval)
	v.SetDefault(cfgKeyMetricsAddr, "")
}

// engineConfig maps the loaded settings onto a validated types.Config.
func engineConfig(v *viper.Viper, dataDir string) (types.Config, error) {
	cfg := types.Config{
		Store:                types.StoreConfig{Backend: v.GetString(cfgKeyBackend), DataDir: dataDir},
		Relays:               v.GetStringSlice(cfgKeyRelays),
		Keys:                 v.GetStringSlice(cfgKeyKeys),
		Context:              v.GetString(cfgKeyIdentityContext),
		IdentityPollInterval: v.GetDuration(cfgKeyIdentityInterval),
		ContentPollInterval:  v.GetDuration(cfgKeyContentInterval),
		QuietPeriod:          v.GetDuration(cfgKeyQuietPeriod),
		CheckInterval:        v.GetDuration(cfgKeyCheckInterval),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates config.yaml unless it exists.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o600)
}
