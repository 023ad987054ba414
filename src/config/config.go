package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the engine configuration
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Predictor    PredictorConfig    `yaml:"predictor"`
	Advisor      AdvisorConfig      `yaml:"advisor"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Storage      StorageConfig      `yaml:"storage"`
	Database     DatabaseConfig     `yaml:"database"`
	Diag         DiagConfig         `yaml:"diag"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// MonitorConfig represents telemetry and forecasting configuration
type MonitorConfig struct {
	Interval         time.Duration `yaml:"interval"`
	MaxEventsHistory int           `yaml:"max_events_history"`
	PersistEvery     int           `yaml:"persist_every"`      // persist once per N ticks
	AlertMinRequests int           `yaml:"alert_min_requests"` // traffic floor for ratio alerts
}

// PredictorConfig represents pattern predictor configuration
type PredictorConfig struct {
	TuningInterval time.Duration `yaml:"tuning_interval"`
	MaxPatterns    int           `yaml:"max_patterns"`
}

// AdvisorConfig represents query advisor configuration
type AdvisorConfig struct {
	CacheEnabled        bool          `yaml:"cache_enabled"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	MaxResultSetSize    int64         `yaml:"max_result_set_size"`
	BatchSize           int           `yaml:"batch_size"`
	BatchDebounce       time.Duration `yaml:"batch_debounce"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
	MaxPatterns         int           `yaml:"max_patterns"`
	MaxMetrics          int           `yaml:"max_metrics"`
}

// OrchestratorConfig represents facade configuration
type OrchestratorConfig struct {
	HealthInterval       time.Duration `yaml:"health_interval"`
	BaselineRefreshEvery int           `yaml:"baseline_refresh_every"` // refresh once per N health ticks
	MemoryTierEntries    int           `yaml:"memory_tier_entries"`
}

// StorageConfig represents persistent store configuration
type StorageConfig struct {
	Backend  string        `yaml:"backend"` // memory or redis
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// DatabaseConfig represents the optional database connection
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DiagConfig represents the optional diagnostics HTTP server
type DiagConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Prometheus   bool          `yaml:"prometheus"`
}

// LoadConfig loads configuration from file or environment variables
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config file
		expandedData := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.overrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnvVars expands ${VAR} or $VAR patterns in the input string
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)
	return re.ReplaceAllStringFunc(input, func(match string) string {
		var varName string
		if match[1] == '{' {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// defaultConfig returns default configuration
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Monitor: MonitorConfig{
			Interval:         10 * time.Second,
			MaxEventsHistory: 1000,
			PersistEvery:     6,
			AlertMinRequests: 10,
		},
		Predictor: PredictorConfig{
			TuningInterval: 15 * time.Minute,
			MaxPatterns:    500,
		},
		Advisor: AdvisorConfig{
			CacheEnabled:        true,
			CacheTTL:            5 * time.Minute,
			MaxResultSetSize:    1 << 20, // 1MB
			BatchSize:           10,
			BatchDebounce:       100 * time.Millisecond,
			MaintenanceInterval: 5 * time.Minute,
			MaxPatterns:         500,
			MaxMetrics:          2000,
		},
		Orchestrator: OrchestratorConfig{
			HealthInterval:       60 * time.Second,
			BaselineRefreshEvery: 10,
			MemoryTierEntries:    500,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Prefix:  "cacheperf",
			TTL:     7 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Enabled: false,
			Port:    5432,
			SSLMode: "disable",
		},
		Diag: DiagConfig{
			Enabled:      false,
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// overrideFromEnv overrides configuration with environment variables
func (c *Config) overrideFromEnv() {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if interval := os.Getenv("MONITOR_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Monitor.Interval = d
		}
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Storage.Backend = "redis"
		c.Storage.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Storage.Password = password
	}
	if host := os.Getenv("DATABASE_HOST"); host != "" {
		c.Database.Enabled = true
		c.Database.Host = host
		c.Database.Port = getEnvInt("DATABASE_PORT", 5432)
		c.Database.User = getEnv("DATABASE_USER", "postgres")
		c.Database.Password = getEnv("DATABASE_PASSWORD", "")
		c.Database.Database = getEnv("DATABASE_NAME", "postgres")
		c.Database.SSLMode = getEnv("DATABASE_SSLMODE", "disable")
	}
	if port := os.Getenv("DIAG_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Diag.Enabled = true
			c.Diag.Port = p
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if c.Monitor.MaxEventsHistory < 10 {
		return fmt.Errorf("max events history too small: %d", c.Monitor.MaxEventsHistory)
	}
	if c.Monitor.PersistEvery < 1 {
		return fmt.Errorf("persist_every must be at least 1")
	}

	if c.Advisor.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if c.Advisor.BatchDebounce <= 0 {
		return fmt.Errorf("batch debounce must be positive")
	}

	if c.Orchestrator.BaselineRefreshEvery < 1 {
		return fmt.Errorf("baseline_refresh_every must be at least 1")
	}

	switch c.Storage.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}
	if c.Storage.Backend == "redis" && c.Storage.Addr == "" {
		return fmt.Errorf("redis backend requires an address")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
	}

	if c.Diag.Enabled && (c.Diag.Port < 1 || c.Diag.Port > 65535) {
		return fmt.Errorf("invalid diag port: %d", c.Diag.Port)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
