package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/dispensing-api/pkg/messaging/rabbitmq"
	"github.com/jwalitptl/dispensing-api/pkg/messaging/redis"
	"github.com/jwalitptl/dispensing-api/pkg/worker"
)

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type SessionConfig struct {
	// Store is "redis" or "memory".
	Store        string        `mapstructure:"store"`
	Secret       string        `mapstructure:"secret"`
	TTL          time.Duration `mapstructure:"ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
}

type LookupConfig struct {
	// Mode is "http" or "static".
	Mode     string        `mapstructure:"mode"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type CaptureConfig struct {
	// Device is "push" for browser streamed frames or "still" for a fixed test card.
	Device         string        `mapstructure:"device"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	MaxFrameBytes  int64         `mapstructure:"max_frame_bytes"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	ReapInterval   time.Duration `mapstructure:"reap_interval"`
}

type BrokerConfig struct {
	// Kind is "redis" or "rabbitmq".
	Kind        string `mapstructure:"kind"`
	Channel     string `mapstructure:"channel"`
	RabbitMQURL string `mapstructure:"rabbitmq_url"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`

	// RetentionDays is how long processed events are kept.
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	// EncryptionKey is the hex encoded AES key for stored document files.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Session    SessionConfig    `mapstructure:"session"`
	Lookup     LookupConfig     `mapstructure:"lookup"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Log        LogConfig        `mapstructure:"log"`
}

// envOverrides are read from MEDCOL_* variables and win over the file.
type envOverrides struct {
	DBHost        string `envconfig:"DB_HOST"`
	DBPort        int    `envconfig:"DB_PORT"`
	DBUser        string `envconfig:"DB_USER"`
	DBPassword    string `envconfig:"DB_PASSWORD"`
	DBName        string `envconfig:"DB_NAME"`
	RedisURL      string `envconfig:"REDIS_URL"`
	SessionSecret string `envconfig:"SESSION_SECRET"`
	LookupURL     string `envconfig:"LOOKUP_URL"`
	LookupAPIKey  string `envconfig:"LOOKUP_API_KEY"`
	RabbitMQURL   string `envconfig:"RABBITMQ_URL"`
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 20*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "medcol")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("session.store", "redis")
	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("session.cookie_name", "medcol-user")
	v.SetDefault("session.bcrypt_cost", 10)

	v.SetDefault("lookup.mode", "static")
	v.SetDefault("lookup.timeout", 10*time.Second)
	v.SetDefault("lookup.cache_ttl", 30*time.Second)

	v.SetDefault("capture.device", "push")
	v.SetDefault("capture.max_upload_bytes", 10<<20)
	v.SetDefault("capture.max_frame_bytes", 4<<20)
	v.SetDefault("capture.idle_timeout", 15*time.Minute)
	v.SetDefault("capture.reap_interval", time.Minute)

	v.SetDefault("broker.kind", "redis")
	v.SetDefault("broker.channel", "medcol.documents")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", 10*time.Second)
	v.SetDefault("outbox.retention_days", 7)
	v.SetDefault("outbox.cleanup_interval", time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("security.allowed_origins", []string{})
	v.SetDefault("security.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("security.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"})

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from the usual locations and applies MEDCOL_* overrides.
// A missing file is not an error; defaults apply.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load reads the given file, or searches the default paths when file is empty.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("medcol", &env); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	setString(&c.Database.Host, env.DBHost)
	setString(&c.Database.User, env.DBUser)
	setString(&c.Database.Password, env.DBPassword)
	setString(&c.Database.Name, env.DBName)
	if env.DBPort != 0 {
		c.Database.Port = env.DBPort
	}
	setString(&c.Redis.URL, env.RedisURL)
	setString(&c.Session.Secret, env.SessionSecret)
	setString(&c.Lookup.BaseURL, env.LookupURL)
	setString(&c.Lookup.APIKey, env.LookupAPIKey)
	setString(&c.Broker.RabbitMQURL, env.RabbitMQURL)
	setString(&c.Security.EncryptionKey, env.EncryptionKey)
	setString(&c.Log.Level, env.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the switches that select implementations.
func (c *Config) Validate() error {
	c.Session.Store = strings.ToLower(c.Session.Store)
	c.Lookup.Mode = strings.ToLower(c.Lookup.Mode)
	c.Broker.Kind = strings.ToLower(c.Broker.Kind)
	c.Capture.Device = strings.ToLower(c.Capture.Device)

	switch c.Session.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid session.store %q", c.Session.Store)
	}
	switch c.Lookup.Mode {
	case "http":
		if c.Lookup.BaseURL == "" {
			return errors.New("lookup.base_url is required when lookup.mode is http")
		}
	case "static":
	default:
		return fmt.Errorf("invalid lookup.mode %q", c.Lookup.Mode)
	}
	switch c.Broker.Kind {
	case "redis":
	case "rabbitmq":
		if c.Broker.RabbitMQURL == "" {
			return errors.New("broker.rabbitmq_url is required when broker.kind is rabbitmq")
		}
	default:
		return fmt.Errorf("invalid broker.kind %q", c.Broker.Kind)
	}
	switch c.Capture.Device {
	case "push", "still":
	default:
		return fmt.Errorf("invalid capture.device %q", c.Capture.Device)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	return nil
}

func (c *Config) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		Channel:       c.Broker.Channel,
		BatchSize:     c.Outbox.BatchSize,
		PollInterval:  c.Outbox.PollInterval,
		RetryAttempts: c.Outbox.RetryAttempts,
		RetryDelay:    c.Outbox.RetryDelay,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *BrokerConfig) ToRabbitMQConfig() rabbitmq.Config {
	return rabbitmq.Config{
		URL:   c.RabbitMQURL,
		Queue: c.Channel,
	}
}
