package storage

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// Querier is satisfied by *sqlx.DB, *sqlx.Conn and *sqlx.Tx.
type Querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(query string) string
}

// Observer receives the outcome of every query. observability.Metrics
// implements it.
type Observer interface {
	ObserveQuery(operation string, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveQuery(string, time.Duration, error) {}

// Config for the storage layer
type Config struct {
	// Driver is "postgres" or "sqlite3"
	Driver string
	DSN    string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration

	// AcquireTimeout bounds the wait for a pooled connection
	AcquireTimeout time.Duration

	// Language code lookup cache
	LanguageCacheSize int
	LanguageCacheTTL  time.Duration

	// S3 config (build downloads)
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3UsePathStyle  bool
	S3PresignExpiry time.Duration

	// DownloadBaseURL is used to build download links when S3 is not configured
	DownloadBaseURL string

	// Redis config (rate limiting)
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:            "postgres",
		MaxOpenConns:      20,
		MaxIdleConns:      5,
		ConnMaxLifetime:   1 * time.Hour,
		ConnMaxIdleTime:   10 * time.Minute,
		PingTimeout:       10 * time.Second,
		AcquireTimeout:    5 * time.Second,
		LanguageCacheSize: 64,
		LanguageCacheTTL:  10 * time.Minute,
		S3Region:          "us-east-1",
		S3PresignExpiry:   15 * time.Minute,
		RedisDB:           -1,
		RedisMaxRetries:   3,
		RedisPoolSize:     10,
	}
}
