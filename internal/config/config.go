package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadHost        string        `mapstructure:"read_host"`
	ReadPort        int           `mapstructure:"read_port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// NATSConfig holds NATS JetStream configuration.
// Notifications are disabled when URL is empty.
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// RedisConfig holds Redis configuration.
// The relay pacer uses local limiters only when Addr is empty.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig holds the pacing of a single relay
type RateLimitConfig struct {
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxQueueTime      time.Duration `mapstructure:"max_queue_time"`
}

// RateLimiterConfig holds relay pacer configuration
type RateLimiterConfig struct {
	RedisKeyPrefix          string        `mapstructure:"redis_key_prefix"`
	MaxWorkers              int           `mapstructure:"max_workers"`
	MaxQueueSize            int           `mapstructure:"max_queue_size"`
	EnableLocalFallback     bool          `mapstructure:"enable_local_fallback"`
	LocalFallbackMultiplier float64       `mapstructure:"local_fallback_multiplier"`
	RedisRecheckInterval    time.Duration `mapstructure:"redis_recheck_interval"`
	// Default applies to every relay without an entry in Overrides
	Default   RateLimitConfig        `mapstructure:"default"`
	Overrides []RelayRateLimitConfig `mapstructure:"overrides"`
}

// RelayRateLimitConfig overrides the pacing of one relay.
// Relay URLs contain dots so they are listed rather than used as map keys.
type RelayRateLimitConfig struct {
	URL             string `mapstructure:"url"`
	RateLimitConfig `mapstructure:",squash"`
}

// RelayConfig holds the relays ingestion reads from
type RelayConfig struct {
	URLs []string `mapstructure:"urls"`
	// FetchLimit caps the records requested per subscription; 0 means no limit
	FetchLimit   int               `mapstructure:"fetch_limit"`
	DialTimeout  time.Duration     `mapstructure:"dial_timeout"`
	MaxFrameSize int64             `mapstructure:"max_frame_size"`
	RateLimit    RateLimiterConfig `mapstructure:"rate_limit"`
}

// ValidatorConfig holds record validation configuration
type ValidatorConfig struct {
	MaxFutureSkew time.Duration `mapstructure:"max_future_skew"`
	// MaxPastAge of 0 accepts records of any age
	MaxPastAge    time.Duration `mapstructure:"max_past_age"`
	BlocklistPath string        `mapstructure:"blocklist_path"`
}

// IngestConfig holds ingestion pass configuration
type IngestConfig struct {
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	PassTimeout   time.Duration `mapstructure:"pass_timeout"`
	SinceOverlap  time.Duration `mapstructure:"since_overlap"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	Workers       int           `mapstructure:"workers"`
}

// CacheConfig holds read-through cache configuration
type CacheConfig struct {
	DefaultFreshness time.Duration `mapstructure:"default_freshness"`
	RefreshWait      time.Duration `mapstructure:"refresh_wait"`
}

// RefresherConfig holds configuration for the background refresher
type RefresherConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Classes  []string      `mapstructure:"classes"`
	Workers  int           `mapstructure:"workers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	ReadTimeout    int     `mapstructure:"read_timeout"`     // in seconds
	WriteTimeout   int     `mapstructure:"write_timeout"`    // in seconds
	IdleTimeout    int     `mapstructure:"idle_timeout"`     // in seconds
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`   // per client, 0 disables
	RateLimitBurst int     `mapstructure:"rate_limit_burst"` // per client
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig    `mapstructure:"server"`
	Database   DatabaseConfig  `mapstructure:"database"`
	NATS       NATSConfig      `mapstructure:"nats"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Relay      RelayConfig     `mapstructure:"relay"`
	Validator  ValidatorConfig `mapstructure:"validator"`
	Ingest     IngestConfig    `mapstructure:"ingest"`
	Cache      CacheConfig     `mapstructure:"cache"`
	Refresher  RefresherConfig `mapstructure:"refresher"`
	Auth       AuthConfig      `mapstructure:"auth"`
}

// CLIConfig holds configuration for cachectl
type CLIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	NATS       NATSConfig      `mapstructure:"nats"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Relay      RelayConfig     `mapstructure:"relay"`
	Validator  ValidatorConfig `mapstructure:"validator"`
	Ingest     IngestConfig    `mapstructure:"ingest"`
	Cache      CacheConfig     `mapstructure:"cache"`
}

// setCommonDefaults sets the defaults shared by every binary
func setCommonDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "ENTITY_UPDATES")
	v.SetDefault("relay.fetch_limit", 0)
	v.SetDefault("relay.dial_timeout", "10s")
	v.SetDefault("relay.max_frame_size", 4*1024*1024) // 4MB
	v.SetDefault("relay.rate_limit.redis_key_prefix", "shopstr:cache:relay:")
	v.SetDefault("relay.rate_limit.max_workers", 32)
	v.SetDefault("relay.rate_limit.max_queue_size", 1024)
	v.SetDefault("relay.rate_limit.enable_local_fallback", true)
	v.SetDefault("relay.rate_limit.local_fallback_multiplier", 0.5)
	v.SetDefault("relay.rate_limit.redis_recheck_interval", "10s")
	v.SetDefault("relay.rate_limit.default.requests_per_second", 5)
	v.SetDefault("relay.rate_limit.default.burst", 5)
	v.SetDefault("relay.rate_limit.default.max_queue_time", "30s")
	v.SetDefault("validator.max_future_skew", "15m")
	v.SetDefault("validator.max_past_age", 0)
	v.SetDefault("ingest.source_timeout", "15s")
	v.SetDefault("ingest.pass_timeout", "60s")
	v.SetDefault("ingest.since_overlap", "10m")
	v.SetDefault("ingest.max_attempts", 3)
	v.SetDefault("ingest.backoff_base", "1s")
	v.SetDefault("ingest.workers", 8)
	v.SetDefault("cache.default_freshness", "5m")
	v.SetDefault("cache.refresh_wait", "3s")
}

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	setCommonDefaults(v)
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("refresher.enabled", true)
	v.SetDefault("refresher.interval", "5m")
	v.SetDefault("refresher.classes", []string{"product", "listing", "review"})
	v.SetDefault("refresher.workers", 2)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadCLIConfig loads configuration for cachectl
func LoadCLIConfig(configFile string, envPath string) (*CLIConfig, error) {
	v := configureViper("cachectl", configFile, envPath)

	// Set defaults
	setCommonDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config CLIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if config.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if config.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}

	return &config, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/api/, cmd/cachectl/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("SHOPSTR_CACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	commonKeys := []string{
		"debug",
		"log_level",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.read_host",
		"database.read_port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		// Relay
		"relay.urls",
		"relay.fetch_limit",
		"relay.dial_timeout",
		"relay.max_frame_size",
		"relay.rate_limit.redis_key_prefix",
		"relay.rate_limit.max_workers",
		"relay.rate_limit.max_queue_size",
		"relay.rate_limit.enable_local_fallback",
		"relay.rate_limit.local_fallback_multiplier",
		"relay.rate_limit.redis_recheck_interval",
		"relay.rate_limit.default.requests_per_second",
		"relay.rate_limit.default.burst",
		"relay.rate_limit.default.max_queue_time",
		// Validator
		"validator.max_future_skew",
		"validator.max_past_age",
		"validator.blocklist_path",
		// Ingest
		"ingest.source_timeout",
		"ingest.pass_timeout",
		"ingest.since_overlap",
		"ingest.max_attempts",
		"ingest.backoff_base",
		"ingest.workers",
		// Cache
		"cache.default_freshness",
		"cache.refresh_wait",
		// Refresher
		"refresher.enabled",
		"refresher.interval",
		"refresher.classes",
		"refresher.workers",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.rate_limit_rps",
		"server.rate_limit_burst",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ReadDSN returns the read-replica database connection string.
// If ReadPort is not configured, it falls back to Port.
func (c *DatabaseConfig) ReadDSN() string {
	port := c.ReadPort
	if port == 0 {
		port = c.Port
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.ReadHost, port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Limit returns the pacing configured for relay, falling back to Default
func (c *RateLimiterConfig) Limit(relay string) RateLimitConfig {
	for _, o := range c.Overrides {
		if o.URL == relay {
			return o.RateLimitConfig
		}
	}
	return c.Default
}
