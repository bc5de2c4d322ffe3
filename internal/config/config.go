// Package config loads the cadence CLI configuration: a YAML file merged
// over defaults, then CADENCE_* environment overrides. Command-line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/cadence/internal/runtime"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "cadence.yaml"

// Program loaders.
const (
	LoaderLoam = "loam"
	LoaderFile = "file"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type RuntimeConfig struct {
	LoopGuard     int `yaml:"loop_guard"`
	MaxStackDepth int `yaml:"max_stack_depth"`
	// TypewriterRate is the number of graphemes revealed per tick by `play`.
	TypewriterRate int           `yaml:"typewriter_rate"`
	TickInterval   time.Duration `yaml:"tick_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type StoreConfig struct {
	Backend string        `yaml:"backend"`
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	TTL     time.Duration `yaml:"ttl"`
	Encrypt bool          `yaml:"encrypt"`
	// PII lists variable name patterns masked before checkpoints are saved.
	PII []string `yaml:"pii"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type KeyringConfig struct {
	Service string `yaml:"service"`
	User    string `yaml:"user"`
}

// Config is the full CLI configuration.
type Config struct {
	ConfigVersion int    `yaml:"config_version"`
	Repo          string `yaml:"repo"`
	// Loader is "loam" (markdown frontmatter, JSON and YAML documents) or
	// "file" (plain JSON/YAML files watched with fsnotify).
	Loader string `yaml:"loader"`
	// Hooks points at a hooks.yaml binding event ids to local commands.
	Hooks   string        `yaml:"hooks"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Keyring KeyringConfig `yaml:"keyring"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ConfigVersion: 1,
		Repo:          ".",
		Loader:        LoaderLoam,
		Runtime: RuntimeConfig{
			LoopGuard:      runtime.DefaultLoopGuard,
			MaxStackDepth:  runtime.DefaultMaxStackDepth,
			TypewriterRate: 1,
			TickInterval:   30 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Store:   StoreConfig{Backend: BackendMemory, Path: ".cadence/sessions", TTL: 24 * time.Hour},
		Server:  ServerConfig{Addr: ":8080"},
		Keyring: KeyringConfig{Service: "cadence", User: "checkpoint-key"},
	}
}

// Env var names used as overrides.
const (
	EnvRepo          = "CADENCE_REPO"
	EnvLoader        = "CADENCE_LOADER"
	EnvHooks         = "CADENCE_HOOKS"
	EnvLoopGuard     = "CADENCE_LOOP_GUARD"
	EnvMaxStackDepth = "CADENCE_MAX_STACK_DEPTH"
	EnvLogLevel      = "CADENCE_LOG_LEVEL"
	EnvLogFormat     = "CADENCE_LOG_FORMAT"
	EnvLogSource     = "CADENCE_LOG_SOURCE"
	EnvLogFile       = "CADENCE_LOG_FILE"
	EnvStoreBackend  = "CADENCE_STORE_BACKEND"
	EnvStorePath     = "CADENCE_STORE_PATH"
	EnvStoreURL      = "CADENCE_STORE_URL"
	EnvStoreTTL      = "CADENCE_STORE_TTL"
	EnvStoreEncrypt  = "CADENCE_STORE_ENCRYPT"
	EnvServerAddr    = "CADENCE_SERVER_ADDR"
)

// Load reads path over the defaults and applies environment overrides.
// An empty path reads DefaultFile if it exists; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg with the CADENCE_* variables that are set.
func ApplyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			lv := strings.ToLower(v)
			*dst = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
		}
	}

	str(EnvRepo, &cfg.Repo)
	str(EnvLoader, &cfg.Loader)
	str(EnvHooks, &cfg.Hooks)
	num(EnvLoopGuard, &cfg.Runtime.LoopGuard)
	num(EnvMaxStackDepth, &cfg.Runtime.MaxStackDepth)
	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvLogFormat, &cfg.Logging.Format)
	flag(EnvLogSource, &cfg.Logging.Source)
	str(EnvLogFile, &cfg.Logging.File)
	str(EnvStoreBackend, &cfg.Store.Backend)
	str(EnvStorePath, &cfg.Store.Path)
	str(EnvStoreURL, &cfg.Store.URL)
	flag(EnvStoreEncrypt, &cfg.Store.Encrypt)
	str(EnvServerAddr, &cfg.Server.Addr)
	if v := strings.TrimSpace(os.Getenv(EnvStoreTTL)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvStoreTTL, err))
		} else {
			cfg.Store.TTL = d
		}
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)
	cfg.Loader = strings.ToLower(cfg.Loader)
	return errors.Join(errs...)
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if c.Loader != LoaderLoam && c.Loader != LoaderFile {
		return fmt.Errorf("unknown loader %q", c.Loader)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendRedis, BackendPostgres:
		if c.Store.URL == "" {
			return fmt.Errorf("store backend %q requires store.url", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Runtime.TypewriterRate < 1 {
		return fmt.Errorf("runtime.typewriter_rate must be at least 1, got %d", c.Runtime.TypewriterRate)
	}
	return nil
}
