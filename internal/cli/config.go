package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/pipeline"
)

// Cache backends selectable in the config file.
const (
	backendFile  = "file"
	backendRedis = "redis"
	backendNone  = "none"
)

// Config is the contents of config.toml. Zero fields take the defaults
// from [defaultConfig].
type Config struct {
	Cache CacheConfig `toml:"cache"`
	Serve ServeConfig `toml:"serve"`
	Fold  FoldConfig  `toml:"fold"`
}

// CacheConfig selects and configures the result cache.
type CacheConfig struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	TTL       duration `toml:"ttl"`
}

// ServeConfig configures "bnfold serve".
type ServeConfig struct {
	Addr      string `toml:"addr"`
	MaxBodyMB int64  `toml:"max_body_mb"`
}

// FoldConfig configures "bnfold fold".
type FoldConfig struct {
	Concurrency int `toml:"concurrency"`
}

// duration decodes TOML strings such as "168h".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Backend:   backendFile,
			RedisAddr: "localhost:6379",
			TTL:       duration{pipeline.DefaultTTL},
		},
		Serve: ServeConfig{Addr: ":8080", MaxBodyMB: 256},
		Fold:  FoldConfig{Concurrency: pipeline.DefaultConcurrency},
	}
}

// loadConfig reads the config file at path. An empty path means the
// default location; a missing default file yields the defaults, while a
// missing explicit file is an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, "config.toml")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "read config %s", path)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse config %s", path)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Cache.Backend {
	case backendFile, backendRedis, backendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "cache.backend must be %q, %q or %q, got %q",
			backendFile, backendRedis, backendNone, c.Cache.Backend)
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache.ttl must not be negative")
	}
	if c.Serve.MaxBodyMB <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "serve.max_body_mb must be positive, got %d", c.Serve.MaxBodyMB)
	}
	if c.Fold.Concurrency < 1 || c.Fold.Concurrency > pipeline.MaxConcurrency {
		return errors.New(errors.ErrCodeInvalidInput, "fold.concurrency must be between 1 and %d, got %d",
			pipeline.MaxConcurrency, c.Fold.Concurrency)
	}
	return nil
}
