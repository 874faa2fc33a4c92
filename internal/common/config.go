package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Store       StoreConfig   `toml:"store"`
	Queue       QueueConfig   `toml:"queue"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StoreConfig selects and configures the job store backend (C3).
type StoreConfig struct {
	Type   string       `toml:"type"` // "mongo" | "badger"
	Mongo  MongoConfig  `toml:"mongo"`
	Badger BadgerConfig `toml:"badger"`
}

type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

type BadgerConfig struct {
	Path string `toml:"path"` // Database directory path
}

// QueueConfig selects and configures the job/status queue backend (C4).
type QueueConfig struct {
	Type   string       `toml:"type"` // "redis" | "sqlite"
	Redis  RedisConfig  `toml:"redis"`
	SQLite SQLiteConfig `toml:"sqlite"`
}

type RedisConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type SQLiteConfig struct {
	Path string `toml:"path"` // goqite database file path
}

// StorageConfig configures the Storage Layout Service (C5).
type StorageConfig struct {
	Root string `toml:"root"` // STORAGE_ROOT
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// NewDefaultConfig returns the configuration used when no file or
// environment override is present.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Store: StoreConfig{
			Type: "badger",
			Mongo: MongoConfig{
				Database:   "meridian",
				Collection: "jobs",
			},
			Badger: BadgerConfig{
				Path: "./data/jobs",
			},
		},
		Queue: QueueConfig{
			Type: "sqlite",
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
			SQLite: SQLiteConfig{
				Path: "./data/queue.db",
			},
		},
		Storage: StorageConfig{
			Root: "./data/storage",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple TOML files, later files
// overriding earlier ones, then applies environment variable overrides.
// Priority: env > last file > ... > first file > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies MERIDIAN_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MERIDIAN_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("MERIDIAN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MERIDIAN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Store configuration
	if storeType := os.Getenv("MERIDIAN_STORE_TYPE"); storeType != "" {
		config.Store.Type = storeType
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		config.Store.Mongo.URI = uri
	}
	if database := os.Getenv("MERIDIAN_MONGO_DATABASE"); database != "" {
		config.Store.Mongo.Database = database
	}
	if collection := os.Getenv("MERIDIAN_MONGO_COLLECTION"); collection != "" {
		config.Store.Mongo.Collection = collection
	}
	if badgerPath := os.Getenv("MERIDIAN_BADGER_PATH"); badgerPath != "" {
		config.Store.Badger.Path = badgerPath
	}

	// Queue configuration
	if queueType := os.Getenv("MERIDIAN_QUEUE_TYPE"); queueType != "" {
		config.Queue.Type = queueType
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		config.Queue.Redis.Host = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		if p, err := strconv.Atoi(redisPort); err == nil {
			config.Queue.Redis.Port = p
		}
	}
	if sqlitePath := os.Getenv("MERIDIAN_SQLITE_PATH"); sqlitePath != "" {
		config.Queue.SQLite.Path = sqlitePath
	}

	// Storage configuration
	if root := os.Getenv("STORAGE_ROOT"); root != "" {
		config.Storage.Root = root
	}

	// Logging configuration
	if level := os.Getenv("MERIDIAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("MERIDIAN_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("MERIDIAN_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides, which take
// priority over file and environment configuration.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction reports whether the config is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
