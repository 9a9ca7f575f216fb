package migrate_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/migrate"
)

func TestDefaultRegistry(t *testing.T) {
	require.Equal(t, []string{"mysql", "postgres", "sqlite"}, migrate.GetDefaultRegistry().GetSupportedEngines())
	require.Same(t, migrate.GetDefaultRegistry(), migrate.GetDefaultRegistry())
}

func TestRunMigrationsMemory(t *testing.T) {
	log, logs := logger.NewObserverLogger("info")

	err := migrate.RunMigrations(context.Background(), migrate.MigrationConfig{Engine: "memory", Logger: log})
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("no migrations to run for `memory` datastore").Len())

	version, err := migrate.CurrentVersion(context.Background(), migrate.MigrationConfig{Engine: "memory"})
	require.NoError(t, err)
	require.Zero(t, version)
}

func TestRunMigrationsUnknownEngine(t *testing.T) {
	err := migrate.RunMigrationsWithRegistry(context.Background(), storage.NewMigratorRegistry(), migrate.MigrationConfig{Engine: "sqlite"})
	require.ErrorContains(t, err, "no migration provider registered for engine: sqlite")

	_, err = migrate.CurrentVersion(context.Background(), migrate.MigrationConfig{Engine: "oracle"})
	require.ErrorContains(t, err, "oracle")
}

func TestMigrateSQLiteRollback(t *testing.T) {
	ctx := context.Background()
	cfg := migrate.MigrationConfig{
		Engine:  "sqlite",
		URI:     filepath.Join(t.TempDir(), "vecinotech.db"),
		Timeout: 5 * time.Second,
		Verbose: true,
		Logger:  logger.NewNoopLogger(),
	}

	require.NoError(t, migrate.RunMigrations(ctx, cfg))
	version, err := migrate.CurrentVersion(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)

	// a target above the last migration is a no-op
	cfg.TargetVersion = 2
	require.NoError(t, migrate.RunMigrations(ctx, cfg))

	cfg.TargetVersion = 1
	require.NoError(t, migrate.RunMigrations(ctx, cfg))
	version, err = migrate.CurrentVersion(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
}
