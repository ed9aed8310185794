package cache

import (
	"fmt"
	"strings"
	"time"
)

// EvictionPolicy selects the replacement strategy when a tier is full.
type EvictionPolicy string

const (
	PolicyLRU    EvictionPolicy = "lru"
	PolicyLFU    EvictionPolicy = "lfu"
	PolicyFIFO   EvictionPolicy = "fifo"
	PolicyRandom EvictionPolicy = "random"
	PolicyTTL    EvictionPolicy = "ttl"
	PolicySize   EvictionPolicy = "size"
	// PolicyARC balances recency and frequency; the default.
	PolicyARC EvictionPolicy = "arc"
)

// ParseEvictionPolicy parses a policy name.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch EvictionPolicy(strings.ToLower(s)) {
	case PolicyLRU, PolicyLFU, PolicyFIFO, PolicyRandom, PolicyTTL, PolicySize, PolicyARC:
		return EvictionPolicy(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown eviction policy %q", s)
}

// InvalidationStrategy selects how entries are invalidated.
type InvalidationStrategy struct {
	Kind     InvalidationKind      `yaml:"kind"`
	Primary  *InvalidationStrategy `yaml:"primary,omitempty"`
	Fallback *InvalidationStrategy `yaml:"fallback,omitempty"`
}

// InvalidationKind tags the strategy variants.
type InvalidationKind string

const (
	InvalidateManual    InvalidationKind = "manual"
	InvalidateTTL       InvalidationKind = "ttl"
	InvalidateTagBased  InvalidationKind = "tag_based"
	InvalidateVersioned InvalidationKind = "versioned"
	InvalidateHybrid    InvalidationKind = "hybrid"
)

// DefaultInvalidationStrategy is tag-based with TTL fallback.
func DefaultInvalidationStrategy() InvalidationStrategy {
	return InvalidationStrategy{
		Kind:     InvalidateHybrid,
		Primary:  &InvalidationStrategy{Kind: InvalidateTagBased},
		Fallback: &InvalidationStrategy{Kind: InvalidateTTL},
	}
}

// respondsToTags reports whether the strategy (or a hybrid member) drops
// entries on tag events.
func (s InvalidationStrategy) respondsToTags() bool {
	switch s.Kind {
	case InvalidateTagBased, InvalidateVersioned:
		return true
	case InvalidateHybrid:
		if s.Primary != nil && s.Primary.respondsToTags() {
			return true
		}
		if s.Fallback != nil && s.Fallback.respondsToTags() {
			return true
		}
	}
	return false
}

// LevelConfig configures a single cache tier.
type LevelConfig struct {
	MaxEntries int            `yaml:"max_entries"`
	MaxBytes   int            `yaml:"max_bytes"`
	DefaultTTL time.Duration  `yaml:"default_ttl"`
	Policy     EvictionPolicy `yaml:"policy"`
}

// Config is the full cache manager configuration.
type Config struct {
	Enabled        bool                 `yaml:"enabled"`
	MaxMemoryBytes int                  `yaml:"max_memory_bytes"`
	L1             LevelConfig          `yaml:"l1"`
	L2             LevelConfig          `yaml:"l2"`
	L3             LevelConfig          `yaml:"l3"`
	EvictionPolicy EvictionPolicy       `yaml:"eviction_policy"`
	Invalidation   InvalidationStrategy `yaml:"invalidation"`
}

// DefaultConfig returns the standard sizing: 512MB budget split 64/256/192.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		MaxMemoryBytes: 512 * 1024 * 1024,
		L1: LevelConfig{
			MaxEntries: 1000,
			MaxBytes:   64 * 1024 * 1024,
			DefaultTTL: 5 * time.Minute,
			Policy:     PolicyLRU,
		},
		L2: LevelConfig{
			MaxEntries: 5000,
			MaxBytes:   256 * 1024 * 1024,
			DefaultTTL: 30 * time.Minute,
			Policy:     PolicyLRU,
		},
		L3: LevelConfig{
			MaxEntries: 20000,
			MaxBytes:   192 * 1024 * 1024,
			DefaultTTL: time.Hour,
			Policy:     PolicyFIFO,
		},
		EvictionPolicy: PolicyARC,
		Invalidation:   DefaultInvalidationStrategy(),
	}
}

// Validate rejects configurations whose tier byte caps exceed the global
// budget or whose tiers cannot hold entries.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	total := c.L1.MaxBytes + c.L2.MaxBytes + c.L3.MaxBytes
	if total > c.MaxMemoryBytes {
		return fmt.Errorf(
			"sum of level memory limits (%d bytes) exceeds max memory (%d bytes)",
			total, c.MaxMemoryBytes)
	}
	if c.L1.MaxEntries == 0 || c.L2.MaxEntries == 0 || c.L3.MaxEntries == 0 {
		return fmt.Errorf("cache levels must have max_entries > 0")
	}
	return nil
}
