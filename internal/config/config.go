package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	Firebase     FirebaseConfig     `yaml:"firebase"`
	Stripe       StripeConfig       `yaml:"stripe"`
	SendGrid     SendGridConfig     `yaml:"sendgrid"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
	Tracing      TracingConfig      `yaml:"tracing"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Outbox       OutboxConfig       `yaml:"outbox"`
	Log          LogConfig          `yaml:"log"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// JWTConfig contains service token settings
type JWTConfig struct {
	Secret             string `yaml:"secret"`
	ServiceTokenExpiry int    `yaml:"service_token_expiry_minutes"`
}

// FirebaseConfig contains identity provider settings
type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// StripeConfig contains payment processor settings
type StripeConfig struct {
	SecretKey         string `yaml:"secret_key"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	MaxNetworkRetries int64  `yaml:"max_network_retries"`
	Currency          string `yaml:"currency"`
}

// SendGridConfig contains ops alert email settings
type SendGridConfig struct {
	APIKey   string `yaml:"api_key"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	OpsEmail string `yaml:"ops_email"`
}

// KafkaConfig contains outbox delivery settings
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RedisConfig contains sweep lease settings. An empty Addr disables the lease.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TracingConfig contains OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
	ServiceName    string `yaml:"service_name"`
}

// RateLimitConfig contains per-client request limits
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	IdleTTLSeconds    int     `yaml:"idle_ttl_seconds"`
	// TrustedProxies lists the IPs or CIDRs whose forwarding headers are honored.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ReservationsConfig contains booking lifecycle settings
type ReservationsConfig struct {
	Timezone                 string `yaml:"timezone"`
	ApprovalTimeoutMinutes   int    `yaml:"approval_timeout_minutes"`
	ScheduledDurationMinutes int    `yaml:"scheduled_duration_minutes"`
	PlatformFeeBps           int64  `yaml:"platform_fee_bps"`
	QuoteTTLHours            int    `yaml:"quote_ttl_hours"`
	AutoCancelReason         string `yaml:"auto_cancel_reason"`
}

// OutboxConfig contains event dispatch settings
type OutboxConfig struct {
	BatchSize   int `yaml:"batch_size"`
	MaxAttempts int `yaml:"max_attempts"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	AutoCancelPending string `yaml:"auto_cancel_pending"`
	DispatchOutbox    string `yaml:"dispatch_outbox"`
	ExpireQuotes      string `yaml:"expire_quotes"`
}

// DefaultAutoCancelReason is recorded on reservations canceled by the sweep.
const DefaultAutoCancelReason = "Tiempo de espera agotado (Auto-Timeout)"

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a configuration from raw YAML, applying env overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Secrets
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}
	if val := os.Getenv("STRIPE_SECRET_KEY"); val != "" {
		c.Stripe.SecretKey = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}
	if val := os.Getenv("FIREBASE_PROJECT_ID"); val != "" {
		c.Firebase.ProjectID = val
	}
	if val := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); val != "" {
		c.Firebase.CredentialsFile = val
	}

	// Messaging and cache
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("JAEGER_ENDPOINT"); val != "" {
		c.Tracing.JaegerEndpoint = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.ServiceTokenExpiry == 0 {
		c.JWT.ServiceTokenExpiry = 5
	}

	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe secret key is required")
	}
	if c.Stripe.TimeoutSeconds == 0 {
		c.Stripe.TimeoutSeconds = 10
	}
	if c.Stripe.MaxNetworkRetries == 0 {
		c.Stripe.MaxNetworkRetries = 2
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "mxn"
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "reservation-events"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "reservas-backend"
	}

	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if c.RateLimit.IdleTTLSeconds == 0 {
		c.RateLimit.IdleTTLSeconds = 600
	}
	if _, err := c.RateLimit.TrustedNets(); err != nil {
		return err
	}

	// Reservation defaults
	if c.Reservations.Timezone == "" {
		c.Reservations.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Reservations.Timezone); err != nil {
		return fmt.Errorf("invalid reservations timezone %q: %w", c.Reservations.Timezone, err)
	}
	if c.Reservations.ApprovalTimeoutMinutes == 0 {
		c.Reservations.ApprovalTimeoutMinutes = 30
	}
	if c.Reservations.ScheduledDurationMinutes == 0 {
		c.Reservations.ScheduledDurationMinutes = 120
	}
	if c.Reservations.PlatformFeeBps == 0 {
		c.Reservations.PlatformFeeBps = 1000 // 10%
	}
	if c.Reservations.PlatformFeeBps < 0 || c.Reservations.PlatformFeeBps > 10000 {
		return fmt.Errorf("invalid platform fee: %d bps", c.Reservations.PlatformFeeBps)
	}
	if c.Reservations.QuoteTTLHours == 0 {
		c.Reservations.QuoteTTLHours = 24
	}
	if c.Reservations.AutoCancelReason == "" {
		c.Reservations.AutoCancelReason = DefaultAutoCancelReason
	}

	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 50
	}
	if c.Outbox.MaxAttempts == 0 {
		c.Outbox.MaxAttempts = 10
	}

	// Scheduler defaults
	if c.Scheduler.AutoCancelPending == "" {
		c.Scheduler.AutoCancelPending = "0 * * * * *" // every minute
	}
	if c.Scheduler.DispatchOutbox == "" {
		c.Scheduler.DispatchOutbox = "*/15 * * * * *" // every 15 seconds
	}
	if c.Scheduler.ExpireQuotes == "" {
		c.Scheduler.ExpireQuotes = "0 */5 * * * *" // every 5 minutes
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location returns the timezone used for end-of-day computations
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reservations.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ApprovalTimeout is how long a reservation may wait in pending_approval
// IdleTTL is how long a client's limiter survives without requests
func (c RateLimitConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLSeconds) * time.Second
}

// TrustedNets parses TrustedProxies. Bare IPs become single-host networks.
func (c RateLimitConfig) TrustedNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			_, n, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", entry)
		}
		bits := 128
		if ip4 := ip.To4(); ip4 != nil {
			ip, bits = ip4, 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

func (c *Config) ApprovalTimeout() time.Duration {
	return time.Duration(c.Reservations.ApprovalTimeoutMinutes) * time.Minute
}

// ScheduledDuration is the default length of a scheduled booking
func (c *Config) ScheduledDuration() time.Duration {
	return time.Duration(c.Reservations.ScheduledDurationMinutes) * time.Minute
}

// QuoteTTL is how long a quote stays open for client review
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Reservations.QuoteTTLHours) * time.Hour
}
