package sqlcommon

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/assets"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

// WaitForDB pings db with exponential backoff until it answers or timeout
// elapses. A zero timeout means one minute.
func WaitForDB(ctx context.Context, db *sql.DB, timeout time.Duration, log logger.Logger) error {
	if timeout == 0 {
		timeout = time.Minute
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = timeout
	attempt := 1
	return backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err != nil {
			log.Info("waiting for database", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

// gooseLogger forwards goose output to the structured logger.
type gooseLogger struct {
	log logger.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Info(fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Error(fmt.Sprintf(format, v...))
}

// Migrate applies the embedded migrations in dir to db. A zero
// cfg.TargetVersion migrates to the latest version, a target below the
// current version migrates down.
func Migrate(ctx context.Context, db *sql.DB, dialect, dir string, cfg storage.MigrationConfig) error {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	goose.SetLogger(gooseLogger{log: log})
	goose.SetVerbose(cfg.Verbose)
	goose.SetBaseFS(assets.EmbedMigrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set %s dialect: %w", dialect, err)
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get %s db version: %w", cfg.Engine, err)
	}
	log.Info("current schema version", zap.String("engine", cfg.Engine), zap.Int64("version", current))

	target := int64(cfg.TargetVersion)
	switch {
	case target == 0:
		err = goose.UpContext(ctx, db, dir)
	case target < current:
		err = goose.DownToContext(ctx, db, dir, target)
	case target > current:
		err = goose.UpToContext(ctx, db, dir, target)
	default:
		log.Info("schema already at target version", zap.String("engine", cfg.Engine))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", cfg.Engine, err)
	}

	log.Info("migration done", zap.String("engine", cfg.Engine))
	return nil
}

// MigrationVersion returns the schema version recorded in db.
func MigrationVersion(ctx context.Context, db *sql.DB, dialect string) (int64, error) {
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("failed to set %s dialect: %w", dialect, err)
	}
	return goose.GetDBVersionContext(ctx, db)
}
