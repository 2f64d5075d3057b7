// Package config loads the TapeLibrary configuration section (§6),
// following the ParseConfig/Validate shape of the
// cloudbase-coriolis-snapshot-agent example's config package.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// DefaultConfigFile is the conventional path for a system install.
const DefaultConfigFile = "/etc/qualstard/config.toml"

// DriveConfig describes one tape drive's static identity (§6).
type DriveConfig struct {
	SlotNumber int    `toml:"SlotNumber"`
	Address    string `toml:"Address"`
	Serial     string `toml:"Serial"`
}

// TapeLibrary is the config section the engine is built from (§6).
type TapeLibrary struct {
	LtfsPath   string        `toml:"LtfsPath"`
	MtxPath    string        `toml:"MtxPath"`
	Drives     []DriveConfig `toml:"Drives"`
	MountPoint string        `toml:"MountPoint"` // Linux: base directory for drive mount points
	MtxChanger int           `toml:"MtxChanger"` // Windows: turned into ChangerN
}

// Config is the top-level configuration file.
type Config struct {
	TapeLibrary TapeLibrary `toml:"TapeLibrary"`

	// LogFile is the ambient logging sink (see SPEC_FULL.md Ambient
	// Stack); rotated with lumberjack.
	LogFile string `toml:"LogFile"`

	// ListenAddress is where the HTTP surface (§6) binds.
	ListenAddress string `toml:"ListenAddress"`

	// OperationsDBFile, if set, backs the OperationRepository with
	// internal/repo.SQLiteRepository instead of the no-op default.
	OperationsDBFile string `toml:"OperationsDBFile"`
}

// ParseConfig decodes the TOML file at path and validates it.
func ParseConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return &cfg, nil
}

// Validate checks the minimum viable configuration.
func (c *Config) Validate() error {
	if len(c.TapeLibrary.Drives) == 0 {
		return errors.New("TapeLibrary.Drives must list at least one drive")
	}
	seen := make(map[int]bool)
	for _, d := range c.TapeLibrary.Drives {
		if seen[d.SlotNumber] {
			return errors.Errorf("duplicate drive slot number %d", d.SlotNumber)
		}
		seen[d.SlotNumber] = true
	}
	if c.ListenAddress == "" {
		c.ListenAddress = ":8080"
	}
	return nil
}
