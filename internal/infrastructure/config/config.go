package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Metering  MeteringConfig
	Collector CollectorConfig
	Scheduler SchedulerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// MeteringConfig holds the metering source connection settings
type MeteringConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

// MeterConfig binds one metering stream to a transformer strategy
type MeterConfig struct {
	Name      string `mapstructure:"name"`
	Kind      string `mapstructure:"kind"`
	ServiceID string `mapstructure:"service_id"`
	Unit      string `mapstructure:"unit"`
}

// CollectorConfig holds usage collection settings
type CollectorConfig struct {
	Meters        []MeterConfig
	FetchMargin   time.Duration
	FetchLimit    int
	LockTTL       time.Duration
	BusyRetakeTTL time.Duration
	IdleRetakeTTL time.Duration
}

// SchedulerConfig holds collection scheduler configuration
type SchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	RunOnStart bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CLOUDBILL_ prefix (e.g., CLOUDBILL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("CLOUDBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Metering: MeteringConfig{
			BaseURL:        v.GetString("metering.base_url"),
			Token:          v.GetString("metering.token"),
			TimeoutSeconds: v.GetInt("metering.timeout_seconds"),
		},
		Collector: CollectorConfig{
			FetchMargin:   v.GetDuration("collector.fetch_margin"),
			FetchLimit:    v.GetInt("collector.fetch_limit"),
			LockTTL:       v.GetDuration("collector.lock_ttl"),
			BusyRetakeTTL: v.GetDuration("collector.busy_retake_ttl"),
			IdleRetakeTTL: v.GetDuration("collector.idle_retake_ttl"),
		},
		Scheduler: SchedulerConfig{
			Enabled:    v.GetBool("scheduler.enabled"),
			Interval:   v.GetDuration("scheduler.interval"),
			RunOnStart: v.GetBool("scheduler.run_on_start"),
		},
	}

	// Meter bindings are structured entries, not flat keys
	if err := v.UnmarshalKey("collector.meters", &cfg.Collector.Meters); err != nil {
		return nil, fmt.Errorf("error parsing collector.meters: %w", err)
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "cloudbill-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "cloudbill"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Metering.TimeoutSeconds == 0 {
		cfg.Metering.TimeoutSeconds = 30
	}
	if cfg.Collector.FetchMargin == 0 {
		cfg.Collector.FetchMargin = 10 * time.Minute
	}
	if cfg.Collector.FetchLimit == 0 {
		cfg.Collector.FetchLimit = 10000
	}
	if cfg.Collector.LockTTL == 0 {
		cfg.Collector.LockTTL = 5 * time.Minute
	}
	if cfg.Collector.BusyRetakeTTL == 0 {
		cfg.Collector.BusyRetakeTTL = time.Minute
	}
	if cfg.Collector.IdleRetakeTTL == 0 {
		cfg.Collector.IdleRetakeTTL = time.Hour
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	validKinds := map[string]bool{
		"gauge_max": true, "gauge_sum": true, "storage_max": true,
		"uptime": true, "from_image": true, "threshold_gauge": true,
	}
	for i, m := range c.Collector.Meters {
		if m.Name == "" {
			return fmt.Errorf("collector.meters[%d].name is required", i)
		}
		if !validKinds[m.Kind] {
			return fmt.Errorf("collector.meters[%d].kind '%s' is not a known transformer", i, m.Kind)
		}
	}

	if c.Collector.LockTTL < time.Second {
		return fmt.Errorf("collector.lock_ttl must be at least one second")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Metering.BaseURL == "" {
			return fmt.Errorf("metering.base_url is required in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
