package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	HashMD5    = "md5"
	HashSHA256 = "sha256"

	EnvPrefix   = "PKGFETCH_"
	DefaultEnv  = ".env"
	DefaultPath = "config.yml"

	defaultListen         = ":8080"
	defaultPrimary        = "/var/cache/pkgfetch"
	defaultConnectTimeout = 30 * time.Second
	defaultReadTimeout    = 30 * time.Second
	defaultCooldown       = 60 * time.Second
	defaultChunkSize      = 8 * 1024
	defaultEventBuffer    = 256
)

type CacheConfig struct {
	Primary   string   `yaml:"primary"`
	Secondary []string `yaml:"secondary"`
}

type FetcherConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	Cooldown       time.Duration `yaml:"cooldown"`
	ChunkSize      int           `yaml:"chunk_size"`
	RateLimit      int64         `yaml:"rate_limit"` // bytes per second, 0 is unlimited
	UserAgent      string        `yaml:"user_agent"`
	Hash           string        `yaml:"hash"`
}

type EventsConfig struct {
	Buffer   int  `yaml:"buffer"`
	Progress bool `yaml:"progress"`
}

// RedisConfig enables the outcome ledger when URL is set.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type Config struct {
	LogLevel string        `yaml:"log_level"`
	Listen   string        `yaml:"listen"`
	Manifest string        `yaml:"manifest"`
	Cache    CacheConfig   `yaml:"cache"`
	Fetcher  FetcherConfig `yaml:"fetcher"`
	Events   EventsConfig  `yaml:"events"`
	Redis    RedisConfig   `yaml:"redis"`
}

func Default() *Config {
	cfg := &Config{
		Events: EventsConfig{Progress: true},
	}
	cfg.SetDefaults()

	return cfg
}

func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}

	if c.Listen == "" {
		c.Listen = defaultListen
	}

	if c.Cache.Primary == "" {
		c.Cache.Primary = defaultPrimary
	}

	if c.Fetcher.ConnectTimeout == 0 {
		c.Fetcher.ConnectTimeout = defaultConnectTimeout
	}

	if c.Fetcher.ReadTimeout == 0 {
		c.Fetcher.ReadTimeout = defaultReadTimeout
	}

	if c.Fetcher.Cooldown == 0 {
		c.Fetcher.Cooldown = defaultCooldown
	}

	if c.Fetcher.ChunkSize == 0 {
		c.Fetcher.ChunkSize = defaultChunkSize
	}

	if c.Fetcher.Hash == "" {
		c.Fetcher.Hash = HashMD5
	}

	if c.Events.Buffer == 0 {
		c.Events.Buffer = defaultEventBuffer
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	switch c.Fetcher.Hash {
	case HashMD5, HashSHA256:
	default:
		return fmt.Errorf("unknown hash algorithm %q", c.Fetcher.Hash)
	}

	if c.Cache.Primary == "" {
		return errors.New("cache.primary is required")
	}

	if c.Fetcher.ConnectTimeout < 0 || c.Fetcher.ReadTimeout < 0 || c.Fetcher.Cooldown < 0 {
		return errors.New("fetcher timeouts must not be negative")
	}

	if c.Fetcher.ChunkSize < 0 {
		return errors.New("fetcher.chunk_size must not be negative")
	}

	if c.Fetcher.RateLimit < 0 {
		return errors.New("fetcher.rate_limit must not be negative")
	}

	if c.Events.Buffer < 0 {
		return errors.New("events.buffer must not be negative")
	}

	return nil
}

/*
Load builds the configuration in layers:
 1. the YAML file at path, when path is not empty;
 2. variables from envFiles, which never override the process environment;
 3. PKGFETCH_* environment variables.

Defaults fill whatever is still unset.
*/
func Load(fsys afero.Fs, path string, envFiles ...string) (*Config, error) {
	cfg := &Config{
		Events: EventsConfig{Progress: true},
	}

	if path != "" {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}

		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file: %w", err)
		}
	}

	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cannot load env file %s: %w", name, err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(afero.NewOsFs(), path, DefaultEnv)
	if err != nil {
		panic(err)
	}

	return cfg
}

// LoadFromEnv overrides fields with PKGFETCH_* variables.
func (c *Config) LoadFromEnv() error {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Listen, "LISTEN")
	setString(&c.Manifest, "MANIFEST")
	setString(&c.Cache.Primary, "CACHE_PRIMARY")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Fetcher.UserAgent, "USER_AGENT")
	setString(&c.Fetcher.Hash, "HASH")

	if v, ok := lookup("CACHE_SECONDARY"); ok {
		c.Cache.Secondary = filepath.SplitList(v)
	}

	durations := map[string]*time.Duration{
		"CONNECT_TIMEOUT": &c.Fetcher.ConnectTimeout,
		"READ_TIMEOUT":    &c.Fetcher.ReadTimeout,
		"COOLDOWN":        &c.Fetcher.Cooldown,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("cannot parse %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup("RATE_LIMIT"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %sRATE_LIMIT: %w", EnvPrefix, err)
		}
		c.Fetcher.RateLimit = n
	}

	if v, ok := lookup("PROGRESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("cannot parse %sPROGRESS: %w", EnvPrefix, err)
		}
		c.Events.Progress = b
	}

	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}

	return v, true
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}
