package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"rank-observer/src/models"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides, read after the optional .env file is loaded.
const (
	EnvLogLevel  = "RANK_OBSERVER_LOG_LEVEL"
	EnvDBDSN     = "RANK_OBSERVER_DB_DSN"
	EnvRedisAddr = "RANK_OBSERVER_REDIS_ADDR"
	EnvRedisPass = "RANK_OBSERVER_REDIS_PASSWORD"
	EnvPort      = "RANK_OBSERVER_PORT"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. .env is optional, real environment variables win over it
	_ = godotenv.Load()

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse decodes YAML content, applies defaults and env overrides, then validates.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 30
	}
	if c.Network.BootstrapPath == "" {
		c.Network.BootstrapPath = "/"
	}
	if c.DataSource.CalendarMIC == "" {
		c.DataSource.CalendarMIC = "xnse"
	}
	if c.Export.FilePattern == "" {
		c.Export.FilePattern = models.DefaultFilePrefix + "_%Y%m%d_%H%M%S.csv"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = "rank-observer"
	}
	for i := range c.DataSource.Sources {
		if len(c.DataSource.Sources[i].Columns) == 0 {
			c.DataSource.Sources[i].Columns = append([]string(nil), models.DefaultColumns...)
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.Storage.DBConnectionString = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(EnvRedisPass); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", EnvPort, v, err)
		}
		c.Port = port
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Field level rules live in the struct tags
	if err := validator.New().Struct(c.MConfig); err != nil {
		return err
	}

	// Cross-field rules
	if c.Storage.Enabled {
		if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
		if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address cannot be empty when redis is enabled")
	}

	names := make(map[string]struct{}, len(c.DataSource.Sources))
	for _, src := range c.DataSource.Sources {
		if err := ValidateSourceName(src.Name); err != nil {
			return err
		}
		if _, dup := names[src.Name]; dup {
			return fmt.Errorf("source '%s' is configured twice", src.Name)
		}
		names[src.Name] = struct{}{}
	}

	return nil
}

// -----------------------------------------------------------------------------

// ValidateSourceName rejects names that cannot serve as a single path element,
// since exports are written under <dir>/<source>.
func ValidateSourceName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("source name cannot be empty")
	}
	if name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("source name '%s' must not contain path separators or '..'", name)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
