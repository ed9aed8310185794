package coordinator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gqlite/gqlite/pkg/cache"
	"github.com/gqlite/gqlite/pkg/exec"
	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/session"
)

const configFileName = "gqlite.yaml"

// Options configures coordinator construction.
type Options struct {
	Backend     kv.BackendType
	Mode        session.Mode
	Cache       cache.Config
	Enforcement exec.EnforcementMode
}

// DefaultOptions returns the embedded-mode defaults: bolt backend, instance
// sessions, standard cache sizing, advisory enforcement.
func DefaultOptions() Options {
	return Options{
		Backend:     kv.BackendBolt,
		Mode:        session.ModeInstance,
		Cache:       cache.DefaultConfig(),
		Enforcement: exec.EnforceAdvisory,
	}
}

// fileConfig is the gqlite.yaml shape inside the database directory.
type fileConfig struct {
	Backend     string        `yaml:"backend"`
	Enforcement string        `yaml:"enforcement"`
	Cache       *cache.Config `yaml:"cache"`
}

// loadOptions merges gqlite.yaml (when present) over the defaults.
func loadOptions(dataDir string) (Options, error) {
	opts := DefaultOptions()
	raw, err := os.ReadFile(filepath.Join(dataDir, configFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return opts, nil
		}
		return opts, fmt.Errorf("failed to read %s: %w", configFileName, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return opts, fmt.Errorf("invalid %s: %w", configFileName, err)
	}
	if cfg.Backend != "" {
		backend, err := kv.ParseBackendType(cfg.Backend)
		if err != nil {
			return opts, err
		}
		opts.Backend = backend
	}
	switch cfg.Enforcement {
	case "":
	case "disabled":
		opts.Enforcement = exec.EnforceDisabled
	case "advisory":
		opts.Enforcement = exec.EnforceAdvisory
	case "strict":
		opts.Enforcement = exec.EnforceStrict
	default:
		return opts, fmt.Errorf("invalid enforcement mode %q: valid options: disabled, advisory, strict", cfg.Enforcement)
	}
	if cfg.Cache != nil {
		if err := cfg.Cache.Validate(); err != nil {
			return opts, err
		}
		opts.Cache = *cfg.Cache
	}
	return opts, nil
}
