package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nvlviz/pkg/cache"
	"github.com/matzehuels/nvlviz/pkg/engine"
	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/source/neo4jsrc"
	"github.com/matzehuels/nvlviz/pkg/store"
)

// Backend names accepted in the config file.
const (
	backendFile  = "file"
	backendMongo = "mongo"
	backendRedis = "redis"
	backendNone  = "none"
)

// Config is the optional TOML configuration file. Flags override it.
type Config struct {
	// Bundle is the path of the engine bundle inlined into pages.
	Bundle string `toml:"bundle"`
	// BundleURL references the engine bundle by URL instead.
	BundleURL string `toml:"bundle_url"`

	Engine engine.Config   `toml:"engine"`
	Neo4j  neo4jsrc.Config `toml:"neo4j"`
	Store  StoreConfig     `toml:"store"`
	Cache  CacheConfig     `toml:"cache"`
	Server ServerConfig    `toml:"server"`
}

// StoreConfig selects where named graphs live.
type StoreConfig struct {
	Backend    string `toml:"backend"` // "file" (default) or "mongo"
	Dir        string `toml:"dir"`
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// CacheConfig selects where rendered artifacts and imports are cached.
type CacheConfig struct {
	Backend       string `toml:"backend"` // "file" (default), "redis" or "none"
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	// Prefix namespaces keys when several deployments share one Redis.
	Prefix string `toml:"prefix"`
}

// ServerConfig holds defaults for "nvlviz serve".
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	MaxAllowedNodes int      `toml:"max_allowed_nodes"`
	SessionTimeout  duration `toml:"session_timeout"`
}

// duration decodes TOML strings such as "15s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// defaultConfig returns the configuration used when no file exists.
func defaultConfig() *Config {
	return &Config{
		Store:  StoreConfig{Backend: backendFile},
		Cache:  CacheConfig{Backend: backendFile},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// loadConfig reads path over the defaults. An empty path reads the default
// location and tolerates a missing file.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, "config.toml")
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if os.IsNotExist(err) {
			if explicit {
				return nil, errors.New(errors.ErrCodeFileNotFound, "config file %s not found", path)
			}
			return defaultConfig(), nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidOption, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.ErrCodeInvalidOption, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "", backendFile:
	case backendMongo:
		if c.Store.MongoURI == "" {
			return errors.New(errors.ErrCodeInvalidOption, "store.mongo_uri is required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidOption, "unknown store backend %q (must be file or mongo)", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case "", backendFile, backendNone:
	case backendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidOption, "cache.redis_addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidOption, "unknown cache backend %q (must be file, redis or none)", c.Cache.Backend)
	}
	if c.Bundle != "" && c.BundleURL != "" {
		return errors.New(errors.ErrCodeInvalidOption, "set only one of bundle and bundle_url")
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.BundleURL != "" {
		if err := errors.ValidateURL(c.BundleURL); err != nil {
			return err
		}
	}
	return nil
}

// readBundle returns the inline bundle from path, or from the config file
// when path is empty.
func (c *Config) readBundle(path string) ([]byte, error) {
	if path == "" {
		path = c.Bundle
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "engine bundle %s not found", path)
		}
		return nil, err
	}
	return data, nil
}

// openStore opens the configured graph store.
func (c *Config) openStore(ctx context.Context) (store.Store, error) {
	if c.Store.Backend == backendMongo {
		return store.NewMongoStore(ctx, store.MongoOptions{
			URI:        c.Store.MongoURI,
			Database:   c.Store.Database,
			Collection: c.Store.Collection,
		})
	}
	dir := c.Store.Dir
	if dir == "" {
		d, err := dataDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(d, "graphs")
	}
	return store.NewFileStore(dir)
}

// openCache opens the configured cache. noCache disables caching.
func (c *Config) openCache(ctx context.Context, noCache bool) (cache.Cache, cache.Keyer, error) {
	keyer := cache.NewDefaultKeyer()
	if c.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, c.Cache.Prefix)
	}
	if noCache || c.Cache.Backend == backendNone {
		return cache.NewNullCache(), keyer, nil
	}
	if c.Cache.Backend == backendRedis {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return rc, keyer, nil
	}
	dir := c.Cache.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), keyer, nil
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, nil, err
	}
	return fc, keyer, nil
}

// configCommand creates the config management command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir()
			if err != nil {
				return fmt.Errorf("get config dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, "config.toml"))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Neo4j.Password != "" {
				shown.Neo4j.Password = "********"
			}
			if shown.Cache.RedisPassword != "" {
				shown.Cache.RedisPassword = "********"
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(shown)
		},
	})
	return cmd
}
