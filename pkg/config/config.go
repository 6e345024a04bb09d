package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/spkrepo/pkg/auth"
	"github.com/platinummonkey/spkrepo/pkg/observability"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	S3            S3Config            `yaml:"s3"`
	Auth          AuthConfig          `yaml:"auth"`
	Mail          MailConfig          `yaml:"mail"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Downloads     DownloadConfig      `yaml:"downloads"`
	Observability ObservabilityConfig `yaml:"observability"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance"`

	// File is the YAML file the configuration was read from, if any
	File string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	// TrustedProxies lists the addresses or CIDR blocks whose forwarding
	// headers are believed
	TrustedProxies []string `yaml:"trusted_proxies"`

	// Health/metrics server (separate port for k8s health checks)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds relational database settings
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AcquireTimeout  time.Duration `yaml:"acquire_timeout"`
	PingTimeout     time.Duration `yaml:"ping_timeout"`
}

// RedisConfig holds Redis settings. An empty URL disables Redis and rate
// limits are kept in process memory.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	// DB overrides the database of the URL when not negative
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
}

// S3Config holds the object store serving build files. An empty bucket
// disables presigning and downloads redirect to Downloads.BaseURL.
type S3Config struct {
	Endpoint      string        `yaml:"endpoint"`
	Region        string        `yaml:"region"`
	Bucket        string        `yaml:"bucket"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	UsePathStyle  bool          `yaml:"use_path_style"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// AuthConfig holds session, password reset and GitHub settings
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	JWTIssuer  string        `yaml:"jwt_issuer"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	ResetTTL   time.Duration `yaml:"reset_ttl"`
	ResetURL   string        `yaml:"reset_url"`

	GitHubClientID     string `yaml:"github_client_id"`
	GitHubClientSecret string `yaml:"github_client_secret"`
	GitHubRedirectURL  string `yaml:"github_redirect_url"`
}

// MailConfig holds SMTP settings. An empty address logs mails instead of
// sending them.
type MailConfig struct {
	SMTPAddr string        `yaml:"smtp_addr"`
	From     string        `yaml:"from"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RateLimitConfig limits the login and password endpoints per client IP
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// DownloadConfig controls download recording
type DownloadConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// MaintenanceConfig holds background job schedules in cron syntax
type MaintenanceConfig struct {
	Enabled            bool          `yaml:"enabled"`
	ResetPurgeSchedule string        `yaml:"reset_purge_schedule"`
	GaugeSchedule      string        `yaml:"gauge_schedule"`
	JobTimeout         time.Duration `yaml:"job_timeout"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	db := storage.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver:          db.Driver,
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: db.ConnMaxLifetime,
			ConnMaxIdleTime: db.ConnMaxIdleTime,
			AcquireTimeout:  db.AcquireTimeout,
			PingTimeout:     db.PingTimeout,
		},
		Redis: RedisConfig{
			DB:         db.RedisDB,
			MaxRetries: db.RedisMaxRetries,
			PoolSize:   db.RedisPoolSize,
		},
		S3: S3Config{
			Region:        db.S3Region,
			PresignExpiry: db.S3PresignExpiry,
		},
		Auth: AuthConfig{
			JWTIssuer:  "spkrepo",
			SessionTTL: 24 * time.Hour,
			ResetTTL:   time.Hour,
		},
		Mail: MailConfig{
			From:    "spkrepo@localhost",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		},
		Downloads: DownloadConfig{
			Workers:   2,
			QueueSize: 256,
			Timeout:   5 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          observability.FormatText,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "spkrepo",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
		Maintenance: MaintenanceConfig{
			Enabled:            true,
			ResetPurgeSchedule: "@every 15m",
			GaugeSchedule:      "@every 5m",
			JobTimeout:         time.Minute,
		},
	}
}

// LoadConfig loads configuration from defaults, the YAML file named by
// SPKREPO_CONFIG_FILE and then environment variables, in increasing priority.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv("SPKREPO_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path. Keys absent from the file keep
// their current value.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("SPKREPO_HOST", s.Host)
	s.Port = getEnv("SPKREPO_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("SPKREPO_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("SPKREPO_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("SPKREPO_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SPKREPO_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.RequestTimeout = getEnvDuration("SPKREPO_REQUEST_TIMEOUT", s.RequestTimeout)
	s.MaxBodyBytes = getEnvInt64("SPKREPO_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.AllowedOrigins = getEnvList("SPKREPO_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.TrustedProxies = getEnvList("SPKREPO_TRUSTED_PROXIES", s.TrustedProxies)
	s.HealthPort = getEnv("SPKREPO_HEALTH_PORT", s.HealthPort)

	d := &c.Database
	d.Driver = getEnv("SPKREPO_DB_DRIVER", d.Driver)
	d.DSN = getEnv("SPKREPO_DB_DSN", d.DSN)
	d.MaxOpenConns = getEnvInt("SPKREPO_DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("SPKREPO_DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("SPKREPO_DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.ConnMaxIdleTime = getEnvDuration("SPKREPO_DB_CONN_MAX_IDLE_TIME", d.ConnMaxIdleTime)
	d.AcquireTimeout = getEnvDuration("SPKREPO_DB_ACQUIRE_TIMEOUT", d.AcquireTimeout)
	d.PingTimeout = getEnvDuration("SPKREPO_DB_PING_TIMEOUT", d.PingTimeout)

	r := &c.Redis
	r.URL = getEnv("SPKREPO_REDIS_URL", r.URL)
	r.Password = getEnv("SPKREPO_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("SPKREPO_REDIS_DB", r.DB)
	r.MaxRetries = getEnvInt("SPKREPO_REDIS_MAX_RETRIES", r.MaxRetries)
	r.PoolSize = getEnvInt("SPKREPO_REDIS_POOL_SIZE", r.PoolSize)

	o := &c.S3
	o.Endpoint = getEnv("SPKREPO_S3_ENDPOINT", o.Endpoint)
	o.Region = getEnv("SPKREPO_S3_REGION", o.Region)
	o.Bucket = getEnv("SPKREPO_S3_BUCKET", o.Bucket)
	o.AccessKey = getEnv("SPKREPO_S3_ACCESS_KEY", o.AccessKey)
	o.SecretKey = getEnv("SPKREPO_S3_SECRET_KEY", o.SecretKey)
	o.UsePathStyle = getEnvBool("SPKREPO_S3_USE_PATH_STYLE", o.UsePathStyle)
	o.PresignExpiry = getEnvDuration("SPKREPO_S3_PRESIGN_EXPIRY", o.PresignExpiry)

	a := &c.Auth
	a.JWTSecret = getEnv("SPKREPO_JWT_SECRET", a.JWTSecret)
	a.JWTIssuer = getEnv("SPKREPO_JWT_ISSUER", a.JWTIssuer)
	a.SessionTTL = getEnvDuration("SPKREPO_SESSION_TTL", a.SessionTTL)
	a.ResetTTL = getEnvDuration("SPKREPO_RESET_TTL", a.ResetTTL)
	a.ResetURL = getEnv("SPKREPO_RESET_URL", a.ResetURL)
	a.GitHubClientID = getEnv("SPKREPO_GITHUB_CLIENT_ID", a.GitHubClientID)
	a.GitHubClientSecret = getEnv("SPKREPO_GITHUB_CLIENT_SECRET", a.GitHubClientSecret)
	a.GitHubRedirectURL = getEnv("SPKREPO_GITHUB_REDIRECT_URL", a.GitHubRedirectURL)

	m := &c.Mail
	m.SMTPAddr = getEnv("SPKREPO_SMTP_ADDR", m.SMTPAddr)
	m.From = getEnv("SPKREPO_MAIL_FROM", m.From)
	m.Username = getEnv("SPKREPO_SMTP_USERNAME", m.Username)
	m.Password = getEnv("SPKREPO_SMTP_PASSWORD", m.Password)
	m.Timeout = getEnvDuration("SPKREPO_MAIL_TIMEOUT", m.Timeout)

	c.RateLimit.Requests = getEnvInt("SPKREPO_RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Window = getEnvDuration("SPKREPO_RATE_LIMIT_WINDOW", c.RateLimit.Window)

	dl := &c.Downloads
	dl.BaseURL = getEnv("SPKREPO_DOWNLOAD_BASE_URL", dl.BaseURL)
	dl.Workers = getEnvInt("SPKREPO_DOWNLOAD_WORKERS", dl.Workers)
	dl.QueueSize = getEnvInt("SPKREPO_DOWNLOAD_QUEUE_SIZE", dl.QueueSize)
	dl.Timeout = getEnvDuration("SPKREPO_DOWNLOAD_TIMEOUT", dl.Timeout)

	ob := &c.Observability
	ob.LogLevel = getEnv("SPKREPO_LOG_LEVEL", ob.LogLevel)
	ob.LogFormat = getEnv("SPKREPO_LOG_FORMAT", ob.LogFormat)
	ob.MetricsEnabled = getEnvBool("SPKREPO_METRICS_ENABLED", ob.MetricsEnabled)
	ob.OTelEnabled = getEnvBool("SPKREPO_OTEL_ENABLED", ob.OTelEnabled)
	ob.OTelEndpoint = getEnv("SPKREPO_OTEL_ENDPOINT", ob.OTelEndpoint)
	ob.OTelServiceName = getEnv("SPKREPO_OTEL_SERVICE_NAME", ob.OTelServiceName)
	ob.OTelServiceVersion = getEnv("SPKREPO_OTEL_SERVICE_VERSION", ob.OTelServiceVersion)
	ob.OTelInsecure = getEnvBool("SPKREPO_OTEL_INSECURE", ob.OTelInsecure)
	ob.OTelSampleRatio = getEnvFloat("SPKREPO_OTEL_SAMPLE_RATIO", ob.OTelSampleRatio)

	mt := &c.Maintenance
	mt.Enabled = getEnvBool("SPKREPO_MAINTENANCE_ENABLED", mt.Enabled)
	mt.ResetPurgeSchedule = getEnv("SPKREPO_RESET_PURGE_SCHEDULE", mt.ResetPurgeSchedule)
	mt.GaugeSchedule = getEnv("SPKREPO_GAUGE_SCHEDULE", mt.GaugeSchedule)
	mt.JobTimeout = getEnvDuration("SPKREPO_MAINTENANCE_JOB_TIMEOUT", mt.JobTimeout)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if _, err := auth.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes must not be negative")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if c.Auth.GitHubClientID != "" && (c.Auth.GitHubClientSecret == "" || c.Auth.GitHubRedirectURL == "") {
		return fmt.Errorf("GitHub client secret and redirect URL are required when a client id is set")
	}

	if c.S3.Bucket != "" && c.S3.Region == "" {
		return fmt.Errorf("S3 region is required when a bucket is set")
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	if c.Downloads.Workers <= 0 || c.Downloads.QueueSize <= 0 {
		return fmt.Errorf("download workers and queue size must be positive")
	}

	switch strings.ToLower(c.Observability.LogFormat) {
	case observability.FormatText, observability.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// StorageConfig returns the settings of the storage layer
func (c *Config) StorageConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Driver = c.Database.Driver
	cfg.DSN = c.Database.DSN
	cfg.MaxOpenConns = c.Database.MaxOpenConns
	cfg.MaxIdleConns = c.Database.MaxIdleConns
	cfg.ConnMaxLifetime = c.Database.ConnMaxLifetime
	cfg.ConnMaxIdleTime = c.Database.ConnMaxIdleTime
	cfg.AcquireTimeout = c.Database.AcquireTimeout
	cfg.PingTimeout = c.Database.PingTimeout

	cfg.S3Endpoint = c.S3.Endpoint
	cfg.S3Region = c.S3.Region
	cfg.S3Bucket = c.S3.Bucket
	cfg.S3AccessKey = c.S3.AccessKey
	cfg.S3SecretKey = c.S3.SecretKey
	cfg.S3UsePathStyle = c.S3.UsePathStyle
	cfg.S3PresignExpiry = c.S3.PresignExpiry
	cfg.DownloadBaseURL = c.Downloads.BaseURL

	cfg.RedisURL = c.Redis.URL
	cfg.RedisPassword = c.Redis.Password
	cfg.RedisDB = c.Redis.DB
	cfg.RedisMaxRetries = c.Redis.MaxRetries
	cfg.RedisPoolSize = c.Redis.PoolSize
	return cfg
}

// OTelConfig returns the OpenTelemetry settings
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
