// Package config provides configuration loading for the events service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the events service
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Redis         RedisConfig         `mapstructure:"redis" yaml:"redis"`
	NATS          NATSConfig          `mapstructure:"nats" yaml:"nats"`
	OpenSearch    OpenSearchConfig    `mapstructure:"opensearch" yaml:"opensearch"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Auth          AuthConfig          `mapstructure:"auth" yaml:"auth"`
	Events        EventsConfig        `mapstructure:"events" yaml:"events"`
	Webhook       WebhookConfig       `mapstructure:"webhook" yaml:"webhook"`
	Authorization AuthorizationConfig `mapstructure:"authorization" yaml:"authorization"`
	Register      RegisterConfig      `mapstructure:"register" yaml:"register"`
	Tracing       TracingConfig       `mapstructure:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// DatabaseConfig holds subscription store configuration
type DatabaseConfig struct {
	// Backend is "postgres" or "memory".
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"-"`
	Database string `mapstructure:"database" yaml:"database"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// ConnString returns the PostgreSQL connection URL.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// RedisConfig holds Redis configuration for the shared caches
type RedisConfig struct {
	URL        string `mapstructure:"url" yaml:"url"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size" yaml:"pool_size"`
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
	NakDelay      time.Duration `mapstructure:"nak_delay" yaml:"nak_delay"`
	AckWait       time.Duration `mapstructure:"ack_wait" yaml:"ack_wait"`
	MaxDeliver    int           `mapstructure:"max_deliver" yaml:"max_deliver"`
}

// OpenSearchConfig holds the webhook trace log storage configuration
type OpenSearchConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
	Index    string `mapstructure:"index" yaml:"index"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"-"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
}

// EventsConfig holds distribution settings
type EventsConfig struct {
	// AppsDomain is the host suffix that identifies app events.
	AppsDomain            string        `mapstructure:"apps_domain" yaml:"apps_domain"`
	BaseURL               string        `mapstructure:"base_url" yaml:"base_url"`
	CacheBackend          string        `mapstructure:"cache_backend" yaml:"cache_backend"`
	SubscriptionCacheTTL  time.Duration `mapstructure:"subscription_cache_ttl" yaml:"subscription_cache_ttl"`
	AuthorizationCacheTTL time.Duration `mapstructure:"authorization_cache_ttl" yaml:"authorization_cache_ttl"`
	FanoutConcurrency     int           `mapstructure:"fanout_concurrency" yaml:"fanout_concurrency"`
	OutboundWorkers       int           `mapstructure:"outbound_workers" yaml:"outbound_workers"`
	ValidationEventType   string        `mapstructure:"validation_event_type" yaml:"validation_event_type"`
}

// WebhookConfig holds outbound HTTP delivery settings
type WebhookConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ChatHosts       []string      `mapstructure:"chat_hosts" yaml:"chat_hosts"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	TraceSigningKey string        `mapstructure:"trace_signing_key" yaml:"-"`
}

// AuthorizationConfig holds the policy decision point client settings
type AuthorizationConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RegisterConfig holds the party register client settings
type RegisterConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TracingConfig controls OpenTelemetry span export
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("database.backend", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "eventhawk")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "eventhawk_events")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.nak_delay", "30s")
	v.SetDefault("nats.ack_wait", "60s")
	v.SetDefault("nats.max_deliver", 12)

	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.insecure", true)
	v.SetDefault("opensearch.index", "eventhawk-webhook-trace")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("events.apps_domain", "apps.altinn.no")
	v.SetDefault("events.base_url", "http://localhost:8090/events/api/v1")
	v.SetDefault("events.cache_backend", "memory")
	v.SetDefault("events.subscription_cache_ttl", "60s")
	v.SetDefault("events.authorization_cache_ttl", "300s")
	v.SetDefault("events.fanout_concurrency", 8)
	v.SetDefault("events.outbound_workers", 16)
	v.SetDefault("events.validation_event_type", "platform.events.validatesubscription")

	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.chat_hosts", []string{"hooks.slack.com"})
	v.SetDefault("webhook.user_agent", "EventHawk-Events/1.0")
	v.SetDefault("webhook.trace_signing_key", "")

	v.SetDefault("authorization.url", "http://localhost:8091")
	v.SetDefault("authorization.timeout", "5s")

	v.SetDefault("register.url", "http://localhost:8092")
	v.SetDefault("register.timeout", "5s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "events")
	v.SetDefault("tracing.sample_ratio", 1.0)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/eventhawk/events")
	}

	// Environment variables override (EVENTS_SERVER_PORT, etc.)
	v.SetEnvPrefix("EVENTS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config - ignore file not found for defaults
	if err := v.ReadInConfig(); err != nil {
		// Only fail if a specific config path was given
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid database.backend %q: must be postgres or memory", c.Database.Backend)
	}
	switch c.Events.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid events.cache_backend %q: must be memory or redis", c.Events.CacheBackend)
	}
	if c.Events.FanoutConcurrency < 1 {
		return fmt.Errorf("events.fanout_concurrency must be at least 1")
	}
	if c.Events.AppsDomain == "" {
		return fmt.Errorf("events.apps_domain is required")
	}
	return nil
}
