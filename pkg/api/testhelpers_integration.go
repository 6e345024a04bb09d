//go:build integration

package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// TestContainerCleanupOption configures container cleanup behavior
type TestContainerCleanupOption func(*testContainerCleanupConfig)

type testContainerCleanupConfig struct {
	removeVolumes  bool
	cleanupTimeout time.Duration
}

// WithRemoveVolumes ensures volumes are removed on cleanup (default: true)
func WithRemoveVolumes(remove bool) TestContainerCleanupOption {
	return func(c *testContainerCleanupConfig) {
		c.removeVolumes = remove
	}
}

// WithCleanupTimeout sets the timeout for cleanup operations (default: 30s)
func WithCleanupTimeout(timeout time.Duration) TestContainerCleanupOption {
	return func(c *testContainerCleanupConfig) {
		c.cleanupTimeout = timeout
	}
}

// SetupPostgresStore starts a PostgreSQL container and returns a store on a
// freshly migrated schema. The test is skipped when no container runtime is
// available.
//
//	store, cleanup := SetupPostgresStore(t)
//	defer cleanup()
func SetupPostgresStore(t *testing.T, opts ...TestContainerCleanupOption) (*storage.Store, func()) {
	t.Helper()

	config := &testContainerCleanupConfig{
		removeVolumes:  true,
		cleanupTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	containerOpts := []testcontainers.ContainerCustomizer{
		postgres.WithDatabase("spkrepo_test"),
		postgres.WithUsername("spkrepo"),
		postgres.WithPassword("spkrepo_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second)),
	}
	if config.removeVolumes {
		containerOpts = append(containerOpts,
			testcontainers.CustomizeRequest(testcontainers.GenericContainerRequest{
				ContainerRequest: testcontainers.ContainerRequest{
					AutoRemove: true,
				},
			}),
		)
	}

	container, err := postgres.Run(ctx, "postgres:15-alpine", containerOpts...)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.Driver = "postgres"
	cfg.DSN = connStr
	cfg.MaxOpenConns = 4
	store, err := storage.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, store.DB()), "failed to apply schema")

	cleanup := func() {
		if err := store.Close(); err != nil {
			t.Logf("Warning: Failed to close database: %v", err)
		}

		// The test context may already be cancelled here
		cleanupCtx, cancel := context.WithTimeout(context.Background(), config.cleanupTimeout)
		defer cancel()

		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	}

	return store, cleanup
}
