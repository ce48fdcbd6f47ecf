package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"student-records-go/db"
	"student-records-go/logging"
)

const (
	EnvPrefix = "STUDENT_RECORDS"

	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	DataFile string      `mapstructure:"data_file"`
	Backend  string      `mapstructure:"backend"`
	Redis    RedisConfig `mapstructure:"redis"`
	HTTP     HTTPConfig  `mapstructure:"http"`
	Store    StoreConfig `mapstructure:"store"`
	Log      LogConfig   `mapstructure:"log"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	RejectDuplicates bool `mapstructure:"reject_duplicates"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// LoadOptions feeds Load. A nil Env reads the process environment.
type LoadOptions struct {
	ConfigPath string
	Env        map[string]string
	Overrides  map[string]any
}

// keys lists every setting that can come from the environment.
var keys = []string{
	"data_file",
	"backend",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.key_prefix",
	"http.addr",
	"store.reject_duplicates",
	"log.level",
	"log.file",
	"log.max_size_mb",
	"log.max_files",
}

func DefaultConfig() *Config {
	return &Config{
		DataFile: db.DefaultDataFile,
		Backend:  BackendFile,
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: db.DefaultRedisKeyPrefix,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 5,
			MaxFiles:  3,
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_file", cfg.DataFile)
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.key_prefix", cfg.Redis.KeyPrefix)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("store.reject_duplicates", cfg.Store.RejectDuplicates)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_files", cfg.Log.MaxFiles)
}

// EnvName returns the environment variable for a config key, e.g.
// redis.addr -> STUDENT_RECORDS_REDIS_ADDR.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load resolves defaults, then the config file, then environment, then overrides.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigType("yaml")

	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigPath, err)
		}
	} else {
		v.SetConfigName("student-records")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "student-records"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
			// Config file not found; use defaults
		}
	}

	lookup := os.LookupEnv
	if opts.Env != nil {
		lookup = func(name string) (string, bool) {
			val, ok := opts.Env[name]
			return val, ok
		}
	}
	for _, key := range keys {
		if val, ok := lookup(EnvName(key)); ok {
			v.Set(key, val)
		}
	}
	for key, val := range opts.Overrides {
		v.Set(key, val)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile:
		if strings.TrimSpace(c.DataFile) == "" {
			return fmt.Errorf("config: data_file is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required for the redis backend")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must not be negative")
		}
	default:
		return fmt.Errorf("config: backend %q is invalid (must be %s or %s)", c.Backend, BackendFile, BackendRedis)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	return nil
}
