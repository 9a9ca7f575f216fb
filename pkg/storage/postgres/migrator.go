package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vecinotech/vecinotech/assets"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/sqlcommon"
)

// MigrationProvider implements [storage.MigrationProvider] for PostgreSQL.
type MigrationProvider struct{}

func NewMigrationProvider() *MigrationProvider {
	return &MigrationProvider{}
}

func (p *MigrationProvider) GetSupportedEngine() string {
	return "postgres"
}

func (p *MigrationProvider) open(ctx context.Context, config storage.MigrationConfig) (*sql.DB, error) {
	uri, err := withCredentials(config.URI, config.Username, config.Password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := sqlcommon.WaitForDB(ctx, db, config.Timeout, config.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize postgres connection: %w", err)
	}
	return db, nil
}

// RunMigrations see [storage.MigrationProvider].RunMigrations.
func (p *MigrationProvider) RunMigrations(ctx context.Context, config storage.MigrationConfig) error {
	db, err := p.open(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	return sqlcommon.Migrate(ctx, db, "postgres", assets.PostgresMigrationDir, config)
}

// GetCurrentVersion see [storage.MigrationProvider].GetCurrentVersion.
func (p *MigrationProvider) GetCurrentVersion(ctx context.Context, config storage.MigrationConfig) (int64, error) {
	db, err := p.open(ctx, config)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return sqlcommon.MigrationVersion(ctx, db, "postgres")
}
