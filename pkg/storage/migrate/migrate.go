// Package migrate runs the schema migrations of the SQL datastores.
package migrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/mysql"
	"github.com/vecinotech/vecinotech/pkg/storage/postgres"
	"github.com/vecinotech/vecinotech/pkg/storage/sqlite"
)

// MigrationConfig contains the configuration needed for running migrations.
type MigrationConfig = storage.MigrationConfig

var (
	defaultRegistry *storage.MigratorRegistry
	registryOnce    sync.Once
)

// GetDefaultRegistry returns the registry holding the built-in providers.
func GetDefaultRegistry() *storage.MigratorRegistry {
	registryOnce.Do(func() {
		defaultRegistry = storage.NewMigratorRegistry()
		defaultRegistry.RegisterProvider(postgres.NewMigrationProvider())
		defaultRegistry.RegisterProvider(mysql.NewMigrationProvider())
		defaultRegistry.RegisterProvider(sqlite.NewMigrationProvider())
	})
	return defaultRegistry
}

// RunMigrationsWithRegistry migrates cfg.Engine with the provider registered
// for it. The memory engine has nothing to migrate.
func RunMigrationsWithRegistry(ctx context.Context, registry *storage.MigratorRegistry, cfg MigrationConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	if cfg.Engine == "memory" {
		cfg.Logger.Info("no migrations to run for `memory` datastore")
		return nil
	}

	provider, exists := registry.GetProvider(cfg.Engine)
	if !exists {
		return fmt.Errorf("no migration provider registered for engine: %s", cfg.Engine)
	}

	return provider.RunMigrations(ctx, cfg)
}

// RunMigrations migrates with the default registry.
func RunMigrations(ctx context.Context, cfg MigrationConfig) error {
	return RunMigrationsWithRegistry(ctx, GetDefaultRegistry(), cfg)
}

// CurrentVersion reports the schema version of cfg's database.
func CurrentVersion(ctx context.Context, cfg MigrationConfig) (int64, error) {
	if cfg.Engine == "memory" {
		return 0, nil
	}

	provider, exists := GetDefaultRegistry().GetProvider(cfg.Engine)
	if !exists {
		return 0, fmt.Errorf("no migration provider registered for engine: %s", cfg.Engine)
	}
	return provider.GetCurrentVersion(ctx, cfg)
}
