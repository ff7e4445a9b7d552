package model

import "time"

// Config is the complete claimvault configuration
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ledger   LedgerConfig   `yaml:"ledger" mapstructure:"ledger"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Import   ImportConfig   `yaml:"import" mapstructure:"import"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// StoreConfig selects and tunes the key-value backend
type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`   // "badger" or "memory"
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"` // Empty: ~/.claimvault/data for the CLI
	GC      bool   `yaml:"gc" mapstructure:"gc"`             // Value log GC for disk-backed badger
}

// LedgerConfig describes where the current sequence number comes from
type LedgerConfig struct {
	Source          string        `yaml:"source" mapstructure:"source"`                     // "clock" or "static"
	Sequence        uint32        `yaml:"sequence" mapstructure:"sequence"`                 // Used by the static source
	GenesisSequence uint32        `yaml:"genesis_sequence" mapstructure:"genesis_sequence"` // Sequence at GenesisUnix
	GenesisUnix     int64         `yaml:"genesis_unix" mapstructure:"genesis_unix"`
	CloseInterval   time.Duration `yaml:"close_interval" mapstructure:"close_interval"` // Time per sequence tick
}

// AuthConfig selects the authorization verifier
type AuthConfig struct {
	Mode    string     `yaml:"mode" mapstructure:"mode"`                 // "schnorr", "static" or "allow-all"
	Allowed []Identity `yaml:"allowed,omitempty" mapstructure:"allowed"` // Identities accepted in static mode
}

// RegistryConfig bounds paged index reads
type RegistryConfig struct {
	DefaultPageSize int `yaml:"default_page_size" mapstructure:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size" mapstructure:"max_page_size"`
}

// ImportConfig tunes batch imports
type ImportConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Per originator
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LogConfig controls zerolog output
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "console" or "json"
}

// MetricsConfig controls the Prometheus listener
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address" mapstructure:"listen_address"` // Empty disables metrics
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "badger",
			DataDir: "",
			GC:      true,
		},
		Ledger: LedgerConfig{
			Source:          "clock",
			GenesisSequence: 0,
			GenesisUnix:     0,
			CloseInterval:   5 * time.Second,
		},
		Auth: AuthConfig{
			Mode: "schnorr",
		},
		Registry: RegistryConfig{
			DefaultPageSize: 100,
			MaxPageSize:     1000,
		},
		Import: ImportConfig{
			Workers:           1,
			RequestsPerSecond: 50,
			BurstSize:         10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			ListenAddress: "",
		},
	}
}
