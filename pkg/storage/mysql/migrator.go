package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vecinotech/vecinotech/assets"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/sqlcommon"
)

// MigrationProvider implements [storage.MigrationProvider] for MySQL.
type MigrationProvider struct{}

func NewMigrationProvider() *MigrationProvider {
	return &MigrationProvider{}
}

func (m *MigrationProvider) GetSupportedEngine() string {
	return "mysql"
}

func (m *MigrationProvider) open(ctx context.Context, config storage.MigrationConfig) (*sql.DB, error) {
	uri, err := PrepareDSN(config.URI, config.Username, config.Password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	if err := sqlcommon.WaitForDB(ctx, db, config.Timeout, config.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}
	return db, nil
}

// RunMigrations see [storage.MigrationProvider].RunMigrations.
func (m *MigrationProvider) RunMigrations(ctx context.Context, config storage.MigrationConfig) error {
	db, err := m.open(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	return sqlcommon.Migrate(ctx, db, "mysql", assets.MySQLMigrationDir, config)
}

// GetCurrentVersion see [storage.MigrationProvider].GetCurrentVersion.
func (m *MigrationProvider) GetCurrentVersion(ctx context.Context, config storage.MigrationConfig) (int64, error) {
	db, err := m.open(ctx, config)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return sqlcommon.MigrationVersion(ctx, db, "mysql")
}
