package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Queue        QueueConfig
	Shoutcast    ShoutcastConfig
	Provisioning ProvisioningConfig
	Monitoring   MonitoringConfig
	Auth         AuthConfig
	Tracing      TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	PublicHostname  string
	MetricsPort     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// ShoutcastConfig holds the primary streaming server's admin connection
type ShoutcastConfig struct {
	Hostname       string
	AdminPort      int
	AdminPassword  string
	RequestTimeout time.Duration
	MaxStreams     int
}

// ProvisioningConfig holds port pool and stream defaults
type ProvisioningConfig struct {
	PortRangeStart      int
	PortRangeEnd        int
	DefaultMaxListeners int
	DefaultBitrate      int
	DefaultSampleRate   int
	PasswordLength      int
	MaxReconfigAttempts int
}

// MonitoringConfig holds the aggregator's sampling configuration
type MonitoringConfig struct {
	PollInterval   time.Duration
	SampleLimit    int
	LockTTL        time.Duration
	StatusCacheTTL time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Provisioning.PortRangeStart > c.Provisioning.PortRangeEnd {
		return fmt.Errorf("invalid port range %d-%d",
			c.Provisioning.PortRangeStart, c.Provisioning.PortRangeEnd)
	}
	if c.Provisioning.PasswordLength < 16 {
		return fmt.Errorf("password length must be at least 16, got %d", c.Provisioning.PasswordLength)
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.publicHostname", "stream.onestopradio.com")
	viper.SetDefault("server.metricsPort", 9091)
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "streamcast")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Shoutcast defaults
	viper.SetDefault("shoutcast.hostname", "localhost")
	viper.SetDefault("shoutcast.adminPort", 8000)
	viper.SetDefault("shoutcast.adminPassword", "")
	viper.SetDefault("shoutcast.requestTimeout", "30s")
	viper.SetDefault("shoutcast.maxStreams", 100)

	// Provisioning defaults
	viper.SetDefault("provisioning.portRangeStart", 8100)
	viper.SetDefault("provisioning.portRangeEnd", 8200)
	viper.SetDefault("provisioning.defaultMaxListeners", 100)
	viper.SetDefault("provisioning.defaultBitrate", 128)
	viper.SetDefault("provisioning.defaultSampleRate", 44100)
	viper.SetDefault("provisioning.passwordLength", 16)
	viper.SetDefault("provisioning.maxReconfigAttempts", 5)

	// Monitoring defaults
	viper.SetDefault("monitoring.pollInterval", "30s")
	viper.SetDefault("monitoring.sampleLimit", 100)
	viper.SetDefault("monitoring.lockTTL", "1m")
	viper.SetDefault("monitoring.statusCacheTTL", "15s")

	// Auth defaults
	viper.SetDefault("auth.jwtSecret", "")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
}
