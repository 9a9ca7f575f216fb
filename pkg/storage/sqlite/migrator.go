package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vecinotech/vecinotech/assets"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/sqlcommon"
)

// MigrationProvider implements [storage.MigrationProvider] for SQLite.
type MigrationProvider struct{}

func NewMigrationProvider() *MigrationProvider {
	return &MigrationProvider{}
}

func (s *MigrationProvider) GetSupportedEngine() string {
	return "sqlite"
}

func (s *MigrationProvider) open(ctx context.Context, config storage.MigrationConfig) (*sql.DB, error) {
	uri, err := PrepareDSN(config.URI)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	if err := sqlcommon.WaitForDB(ctx, db, config.Timeout, config.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite connection: %w", err)
	}
	return db, nil
}

// RunMigrations see [storage.MigrationProvider].RunMigrations.
func (s *MigrationProvider) RunMigrations(ctx context.Context, config storage.MigrationConfig) error {
	db, err := s.open(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	return sqlcommon.Migrate(ctx, db, "sqlite", assets.SqliteMigrationDir, config)
}

// GetCurrentVersion see [storage.MigrationProvider].GetCurrentVersion.
func (s *MigrationProvider) GetCurrentVersion(ctx context.Context, config storage.MigrationConfig) (int64, error) {
	db, err := s.open(ctx, config)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return sqlcommon.MigrationVersion(ctx, db, "sqlite")
}
