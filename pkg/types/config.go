package types

import (
	"errors"
	"time"
)

// StoreConfig holds backend selection and parameters for Store.Attach.
type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Default engine timings.
const (
	DefaultIdentityPollInterval = 15 * time.Minute
	DefaultContentPollInterval  = 10 * time.Minute
	DefaultQuietPeriod          = time.Minute
	DefaultCheckInterval        = time.Second
	DefaultIdentityContext      = "Sone"
)

// Config validation errors.
var (
	ErrBackendEmpty             = errors.New("backend must not be empty")
	ErrBackendUnknown           = errors.New("unknown backend")
	ErrConfigIntervalInvalid    = errors.New("poll and check intervals must be positive")
	ErrConfigQuietPeriodInvalid = errors.New("quiet period must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the StoreConfig is well-formed.
func (c StoreConfig) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return nil
}

// Config holds the engine settings loaded from config.yaml.
type Config struct {
	Store StoreConfig

	// Relays are the overlay endpoints documents are fetched from and
	// published to.
	Relays []string

	// Keys are hex secret keys of the locally controlled identities.
	Keys []string

	// Context restricts synchronization to own identities carrying this
	// context tag. Empty means every own identity.
	Context string

	IdentityPollInterval time.Duration
	ContentPollInterval  time.Duration
	QuietPeriod          time.Duration
	CheckInterval        time.Duration
}

// DefaultConfig returns a Config with the default timings and a SQLite store
// rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		Store:                StoreConfig{Backend: BackendSQLite, DataDir: dataDir},
		Context:              DefaultIdentityContext,
		IdentityPollInterval: DefaultIdentityPollInterval,
		ContentPollInterval:  DefaultContentPollInterval,
		QuietPeriod:          DefaultQuietPeriod,
		CheckInterval:        DefaultCheckInterval,
	}
}

// Validate checks the store settings and the timings.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.IdentityPollInterval <= 0 || c.ContentPollInterval <= 0 || c.CheckInterval <= 0 {
		return ErrConfigIntervalInvalid
	}
	if c.QuietPeriod < 0 {
		return ErrConfigQuietPeriodInvalid
	}
	return nil
}
