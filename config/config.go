// Package config defines the simulator's tunable knobs and how they are
// loaded: compiled-in defaults, optionally overridden by a .env file and
// then by the process environment, the same layering godotenv is meant
// for.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full set of knobs that govern one simulation run.
type Config struct {
	PerfModelEnabled bool
	DCacheModeling   bool
	ICacheModeling   bool

	CacheSize     uint32
	LineSize      uint32
	Associativity uint32

	DCacheThresholdHit  uint32
	DCacheThresholdMiss uint32
	DCacheSize          uint32
	DCacheAssociativity uint32
	DCacheMaxSearchDepth uint32

	ICacheThresholdHit  uint32
	ICacheThresholdMiss uint32
	ICacheSize          uint32
	ICacheAssociativity uint32
	ICacheMaxSearchDepth uint32

	MutationInterval uint32

	NumStoreBufferEntries uint32
	NumOutstandingLoads   uint32
}

// Default returns the simulator's compiled-in default configuration.
func Default() Config {
	return Config{
		PerfModelEnabled: true,
		DCacheModeling:   true,
		ICacheModeling:   true,

		CacheSize:     65536,
		LineSize:      64,
		Associativity: 4,

		DCacheThresholdHit:   1,
		DCacheThresholdMiss:  10,
		DCacheSize:           65536,
		DCacheAssociativity:  4,
		DCacheMaxSearchDepth: 4,

		ICacheThresholdHit:   1,
		ICacheThresholdMiss:  10,
		ICacheSize:           65536,
		ICacheAssociativity:  4,
		ICacheMaxSearchDepth: 4,

		MutationInterval: 10000,

		NumStoreBufferEntries: 1,
		NumOutstandingLoads:   3,
	}
}

// ConfigError reports an invalid knob value discovered at load time.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Detail)
}

// knob binds one Config field to the environment variable name that
// overrides it.
type knob struct {
	name string
	set  func(*Config, uint32)
}

var uintKnobs = []knob{
	{"GRAPHITE_CACHE_SIZE", func(c *Config, v uint32) { c.CacheSize = v }},
	{"GRAPHITE_LINE_SIZE", func(c *Config, v uint32) { c.LineSize = v }},
	{"GRAPHITE_ASSOCIATIVITY", func(c *Config, v uint32) { c.Associativity = v }},
	{"GRAPHITE_DCACHE_THRESHOLD_HIT", func(c *Config, v uint32) { c.DCacheThresholdHit = v }},
	{"GRAPHITE_DCACHE_THRESHOLD_MISS", func(c *Config, v uint32) { c.DCacheThresholdMiss = v }},
	{"GRAPHITE_DCACHE_SIZE", func(c *Config, v uint32) { c.DCacheSize = v }},
	{"GRAPHITE_DCACHE_ASSOCIATIVITY", func(c *Config, v uint32) { c.DCacheAssociativity = v }},
	{"GRAPHITE_DCACHE_MAX_SEARCH_DEPTH", func(c *Config, v uint32) { c.DCacheMaxSearchDepth = v }},
	{"GRAPHITE_ICACHE_THRESHOLD_HIT", func(c *Config, v uint32) { c.ICacheThresholdHit = v }},
	{"GRAPHITE_ICACHE_THRESHOLD_MISS", func(c *Config, v uint32) { c.ICacheThresholdMiss = v }},
	{"GRAPHITE_ICACHE_SIZE", func(c *Config, v uint32) { c.ICacheSize = v }},
	{"GRAPHITE_ICACHE_ASSOCIATIVITY", func(c *Config, v uint32) { c.ICacheAssociativity = v }},
	{"GRAPHITE_ICACHE_MAX_SEARCH_DEPTH", func(c *Config, v uint32) { c.ICacheMaxSearchDepth = v }},
	{"GRAPHITE_MUTATION_INTERVAL", func(c *Config, v uint32) { c.MutationInterval = v }},
	{"GRAPHITE_NUM_STORE_BUFFER_ENTRIES", func(c *Config, v uint32) { c.NumStoreBufferEntries = v }},
	{"GRAPHITE_NUM_OUTSTANDING_LOADS", func(c *Config, v uint32) { c.NumOutstandingLoads = v }},
}

var boolKnobs = []struct {
	name string
	set  func(*Config, bool)
}{
	{"GRAPHITE_PERF_MODEL_ENABLED", func(c *Config, v bool) { c.PerfModelEnabled = v }},
	{"GRAPHITE_DCACHE_MODELING", func(c *Config, v bool) { c.DCacheModeling = v }},
	{"GRAPHITE_ICACHE_MODELING", func(c *Config, v bool) { c.ICacheModeling = v }},
}

// Load builds a Config starting from Default, then applies envFile (if it
// exists — a missing file is not an error) via godotenv, then the process
// environment, which always has the final word.
func Load(envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return cfg, fmt.Errorf("config: loading %s: %w", envFile, err)
			}
		}
	}

	for _, k := range uintKnobs {
		raw, ok := os.LookupEnv(k.name)
		if !ok {
			continue
		}

		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return cfg, &ConfigError{Field: k.name, Detail: "must be an unsigned integer"}
		}

		k.set(&cfg, uint32(v))
	}

	for _, k := range boolKnobs {
		raw, ok := os.LookupEnv(k.name)
		if !ok {
			continue
		}

		v, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, &ConfigError{Field: k.name, Detail: "must be a boolean"}
		}

		k.set(&cfg, v)
	}

	return cfg, cfg.Validate()
}

// Validate checks that each enabled cache has a nonzero size and
// associativity and that LineSize is nonzero. It does not check powers of
// two, search depths, or whether sizes divide evenly into sets; cache.New
// reports those when the tiles are built.
func (c Config) Validate() error {
	if c.DCacheModeling && (c.DCacheSize == 0 || c.DCacheAssociativity == 0) {
		return &ConfigError{Field: "DCacheSize/DCacheAssociativity", Detail: "must be nonzero when data cache modeling is enabled"}
	}

	if c.ICacheModeling && (c.ICacheSize == 0 || c.ICacheAssociativity == 0) {
		return &ConfigError{Field: "ICacheSize/ICacheAssociativity", Detail: "must be nonzero when instruction cache modeling is enabled"}
	}

	if c.LineSize == 0 {
		return &ConfigError{Field: "LineSize", Detail: "must be nonzero"}
	}

	return nil
}
