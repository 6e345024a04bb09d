package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDefaultConfig tests the DefaultConfig function
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 20, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 1*time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 10*time.Second, cfg.PingTimeout)
	assert.Equal(t, 5*time.Second, cfg.AcquireTimeout)
	assert.Equal(t, 64, cfg.LanguageCacheSize)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, 15*time.Minute, cfg.S3PresignExpiry)

	// -1 keeps the database selected by the redis URL
	assert.Equal(t, -1, cfg.RedisDB)
	assert.Equal(t, 3, cfg.RedisMaxRetries)
	assert.Equal(t, 10, cfg.RedisPoolSize)
}

func TestNopObserver(t *testing.T) {
	var o Observer = nopObserver{}
	assert.NotPanics(t, func() {
		o.ObserveQuery("ListBuilds", time.Millisecond, nil)
	})
}
