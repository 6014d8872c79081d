package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server     ServerConfig     `json:"server" toml:"server"`
	Database   DatabaseConfig   `json:"database" toml:"database"`
	Redis      RedisConfig      `json:"redis" toml:"redis"`
	Cache      CacheConfig      `json:"cache" toml:"cache"`
	Auth       AuthConfig       `json:"auth" toml:"auth"`
	RateLimit  RateLimitConfig  `json:"rate_limit" toml:"rate_limit"`
	Validation ValidationConfig `json:"validation" toml:"validation"`
}

type ServerConfig struct {
	Host            string        `json:"host" toml:"host"`
	Port            string        `json:"port" toml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" toml:"-"`
	WriteTimeout    time.Duration `json:"write_timeout" toml:"-"`
	IdleTimeout     time.Duration `json:"idle_timeout" toml:"-"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" toml:"-"`
	Environment     string        `json:"environment" toml:"environment"`
	AllowedOrigins  []string      `json:"allowed_origins" toml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver" toml:"driver"`
	Host            string        `json:"host" toml:"host"`
	Port            string        `json:"port" toml:"port"`
	User            string        `json:"user" toml:"user"`
	Password        string        `json:"password" toml:"password"`
	Name            string        `json:"name" toml:"name"`
	SSLMode         string        `json:"ssl_mode" toml:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path" toml:"sqlite_path"`
	MaxOpenConns    int           `json:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" toml:"-"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" toml:"-"`
	AutoMigrate     bool          `json:"auto_migrate" toml:"auto_migrate"`
}

type RedisConfig struct {
	Host         string        `json:"host" toml:"host"`
	Port         string        `json:"port" toml:"port"`
	Password     string        `json:"password" toml:"password"`
	DB           int           `json:"db" toml:"db"`
	PoolSize     int           `json:"pool_size" toml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" toml:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries" toml:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout" toml:"-"`
	ReadTimeout  time.Duration `json:"read_timeout" toml:"-"`
	WriteTimeout time.Duration `json:"write_timeout" toml:"-"`
}

type CacheConfig struct {
	Enabled       bool          `json:"enabled" toml:"enabled"`
	RedisEnabled  bool          `json:"redis_enabled" toml:"redis_enabled"`
	QueryTTL      time.Duration `json:"query_ttl" toml:"-"`
	MaxL2Failures int           `json:"max_l2_failures" toml:"max_l2_failures"`
	L2RetryAfter  time.Duration `json:"l2_retry_after" toml:"-"`
	L1TTL         time.Duration `json:"l1_ttl" toml:"-"` // upper bound on peer staleness when Redis is on
	WarmInterval  time.Duration `json:"warm_interval" toml:"-"` // 0 disables background warming
}

type AuthConfig struct {
	Enabled   bool          `json:"enabled" toml:"enabled"`
	JWTSecret string        `json:"-" toml:"jwt_secret"`
	Issuer    string        `json:"issuer" toml:"issuer"`
	TokenTTL  time.Duration `json:"token_ttl" toml:"-"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled" toml:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute" toml:"requests_per_minute"`
	BurstSize       int           `json:"burst_size" toml:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval" toml:"-"`
}

// ValidationConfig controls the optional input rules. Strict enforces a minimum
// full_name length and rejects deadlines before today.
type ValidationConfig struct {
	Strict            bool `json:"strict" toml:"strict"`
	MinFullNameLength int  `json:"min_full_name_length" toml:"min_full_name_length"`
}

const defaultJWTSecret = "your-secret-key"

// durations in the TOML file are written as Go duration strings ("30s", "5m").
type fileDurations struct {
	Server struct {
		ReadTimeout     string `toml:"read_timeout"`
		WriteTimeout    string `toml:"write_timeout"`
		IdleTimeout     string `toml:"idle_timeout"`
		ShutdownTimeout string `toml:"shutdown_timeout"`
	} `toml:"server"`
	Database struct {
		ConnMaxLifetime string `toml:"conn_max_lifetime"`
		ConnMaxIdleTime string `toml:"conn_max_idle_time"`
	} `toml:"database"`
	Redis struct {
		DialTimeout  string `toml:"dial_timeout"`
		ReadTimeout  string `toml:"read_timeout"`
		WriteTimeout string `toml:"write_timeout"`
	} `toml:"redis"`
	Cache struct {
		QueryTTL     string `toml:"query_ttl"`
		L2RetryAfter string `toml:"l2_retry_after"`
		L1TTL        string `toml:"l1_ttl"`
		WarmInterval string `toml:"warm_interval"`
	} `toml:"cache"`
	Auth struct {
		TokenTTL string `toml:"token_ttl"`
	} `toml:"auth"`
	RateLimit struct {
		CleanupInterval string `toml:"cleanup_interval"`
	} `toml:"rate_limit"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "task_tracker",
			SSLMode:         "disable",
			SQLitePath:      "tracker.db",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         "6379",
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:       true,
			RedisEnabled:  false,
			QueryTTL:      time.Minute,
			MaxL2Failures: 5,
			L2RetryAfter:  30 * time.Second,
			L1TTL:         10 * time.Second,
			WarmInterval:  5 * time.Minute,
		},
		Auth: AuthConfig{
			Enabled:   false,
			JWTSecret: defaultJWTSecret,
			Issuer:    "task-tracker",
			TokenTTL:  24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			RequestsPerMin:  100,
			BurstSize:       10,
			CleanupInterval: 10 * time.Minute,
		},
		Validation: ValidationConfig{
			Strict:            true,
			MinFullNameLength: 3,
		},
	}
}

// LoadConfig builds the configuration from defaults overridden by environment variables.
func LoadConfig() (*Config, error) {
	return load(Default())
}

// LoadConfigFile decodes a TOML file whose values replace the defaults; environment
// variables still take precedence over the file. An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	base := Default()
	if path == "" {
		return load(base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var durations fileDurations
	if err := toml.Unmarshal(data, &durations); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyFileDurations(&base, durations); err != nil {
		return nil, err
	}

	return load(base)
}

func applyFileDurations(cfg *Config, d fileDurations) error {
	fields := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"server.read_timeout", d.Server.ReadTimeout, &cfg.Server.ReadTimeout},
		{"server.write_timeout", d.Server.WriteTimeout, &cfg.Server.WriteTimeout},
		{"server.idle_timeout", d.Server.IdleTimeout, &cfg.Server.IdleTimeout},
		{"server.shutdown_timeout", d.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
		{"database.conn_max_lifetime", d.Database.ConnMaxLifetime, &cfg.Database.ConnMaxLifetime},
		{"database.conn_max_idle_time", d.Database.ConnMaxIdleTime, &cfg.Database.ConnMaxIdleTime},
		{"redis.dial_timeout", d.Redis.DialTimeout, &cfg.Redis.DialTimeout},
		{"redis.read_timeout", d.Redis.ReadTimeout, &cfg.Redis.ReadTimeout},
		{"redis.write_timeout", d.Redis.WriteTimeout, &cfg.Redis.WriteTimeout},
		{"cache.query_ttl", d.Cache.QueryTTL, &cfg.Cache.QueryTTL},
		{"cache.l2_retry_after", d.Cache.L2RetryAfter, &cfg.Cache.L2RetryAfter},
		{"cache.l1_ttl", d.Cache.L1TTL, &cfg.Cache.L1TTL},
		{"cache.warm_interval", d.Cache.WarmInterval, &cfg.Cache.WarmInterval},
		{"auth.token_ttl", d.Auth.TokenTTL, &cfg.Auth.TokenTTL},
		{"rate_limit.cleanup_interval", d.RateLimit.CleanupInterval, &cfg.RateLimit.CleanupInterval},
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(f.value)
		if err != nil {
			return fmt.Errorf("parse config: %s: %w", f.name, err)
		}
		*f.dest = parsed
	}
	return nil
}

func load(base Config) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", base.Server.Host),
			Port:            getEnv("PORT", base.Server.Port),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", base.Server.ReadTimeout),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", base.Server.WriteTimeout),
			IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", base.Server.IdleTimeout),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", base.Server.ShutdownTimeout),
			Environment:     getEnv("ENVIRONMENT", base.Server.Environment),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", base.Server.AllowedOrigins),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", base.Database.Driver),
			Host:            getEnv("DB_HOST", base.Database.Host),
			Port:            getEnv("DB_PORT", base.Database.Port),
			User:            getEnv("DB_USER", base.Database.User),
			Password:        getEnv("DB_PASSWORD", base.Database.Password),
			Name:            getEnv("DB_NAME", base.Database.Name),
			SSLMode:         getEnv("DB_SSL_MODE", base.Database.SSLMode),
			SQLitePath:      getEnv("DB_SQLITE_PATH", base.Database.SQLitePath),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", base.Database.MaxOpenConns),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", base.Database.MaxIdleConns),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", base.Database.ConnMaxLifetime),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", base.Database.ConnMaxIdleTime),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", base.Database.AutoMigrate),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", base.Redis.Host),
			Port:         getEnv("REDIS_PORT", base.Redis.Port),
			Password:     getEnv("REDIS_PASSWORD", base.Redis.Password),
			DB:           getEnvAsInt("REDIS_DB", base.Redis.DB),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", base.Redis.PoolSize),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", base.Redis.MinIdleConns),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", base.Redis.MaxRetries),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", base.Redis.DialTimeout),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", base.Redis.ReadTimeout),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", base.Redis.WriteTimeout),
		},
		Cache: CacheConfig{
			Enabled:       getEnvAsBool("CACHE_ENABLED", base.Cache.Enabled),
			RedisEnabled:  getEnvAsBool("CACHE_REDIS_ENABLED", base.Cache.RedisEnabled),
			QueryTTL:      getEnvAsDuration("CACHE_TTL", base.Cache.QueryTTL),
			MaxL2Failures: getEnvAsInt("CACHE_MAX_L2_FAILURES", base.Cache.MaxL2Failures),
			L2RetryAfter:  getEnvAsDuration("CACHE_L2_RETRY_AFTER", base.Cache.L2RetryAfter),
			L1TTL:         getEnvAsDuration("CACHE_L1_TTL", base.Cache.L1TTL),
			WarmInterval:  getEnvAsDuration("CACHE_WARM_INTERVAL", base.Cache.WarmInterval),
		},
		Auth: AuthConfig{
			Enabled:   getEnvAsBool("AUTH_ENABLED", base.Auth.Enabled),
			JWTSecret: getEnv("JWT_SECRET", base.Auth.JWTSecret),
			Issuer:    getEnv("JWT_ISSUER", base.Auth.Issuer),
			TokenTTL:  getEnvAsDuration("JWT_TOKEN_TTL", base.Auth.TokenTTL),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool("RATE_LIMIT_ENABLED", base.RateLimit.Enabled),
			RequestsPerMin:  getEnvAsInt("RATE_LIMIT_RPM", base.RateLimit.RequestsPerMin),
			BurstSize:       getEnvAsInt("RATE_LIMIT_BURST", base.RateLimit.BurstSize),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP", base.RateLimit.CleanupInterval),
		},
		Validation: ValidationConfig{
			Strict:            getEnvAsBool("VALIDATION_STRICT", base.Validation.Strict),
			MinFullNameLength: getEnvAsInt("VALIDATION_MIN_FULL_NAME", base.Validation.MinFullNameLength),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q (expected postgres or sqlite)", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Password == "" && c.IsProduction() {
		return fmt.Errorf("database password is required in production")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == defaultJWTSecret && c.IsProduction() {
		return fmt.Errorf("JWT secret must be set in production")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("rate limit requests per minute must be positive")
	}

	return nil
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
