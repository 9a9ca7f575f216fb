package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"

	"github.com/vecinotech/vecinotech/internal/build"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

var tracer = otel.Tracer("pkg/storage/sqlcommon")

type errorHandlerFn func(error, ...interface{}) error

// DBInfo holds what the shared queries need to run against one engine.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError errorHandlerFn

	// lockSuffix is appended to the read that precedes a conditional write
	// inside the same transaction, e.g. "FOR UPDATE".
	lockSuffix string
	// upsertProfileSuffix turns the profile insert into an upsert.
	upsertProfileSuffix string
}

// DBInfoOption customizes the dialect specific parts of a [DBInfo].
type DBInfoOption func(*DBInfo)

// WithRowLock sets the suffix used to lock rows read before a conditional write.
func WithRowLock(suffix string) DBInfoOption {
	return func(d *DBInfo) {
		d.lockSuffix = suffix
	}
}

// WithUpsertProfileSuffix sets the clause appended to the profile insert so
// that an existing row is updated in place.
func WithUpsertProfileSuffix(suffix string) DBInfoOption {
	return func(d *DBInfo) {
		d.upsertProfileSuffix = suffix
	}
}

// OnConflictUpsertProfile is the upsert clause understood by sqlite and postgres.
const OnConflictUpsertProfile = "ON CONFLICT (user_id) DO UPDATE SET " +
	"display_name = excluded.display_name, address_line = excluded.address_line, " +
	"city = excluded.city, postal_code = excluded.postal_code, country = excluded.country, " +
	"volunteer = excluded.volunteer, updated_at = excluded.updated_at"

// NewDBInfo constructs a [DBInfo] object.
func NewDBInfo(db *sql.DB, stbl sq.StatementBuilderType, errorHandler errorHandlerFn, dialect string, opts ...DBInfoOption) *DBInfo {
	if err := goose.SetDialect(dialect); err != nil {
		panic("failed to set database dialect: " + err.Error())
	}

	info := &DBInfo{
		db:                  db,
		stbl:                stbl,
		HandleSQLError:      errorHandler,
		upsertProfileSuffix: OnConflictUpsertProfile,
	}
	for _, opt := range opts {
		opt(info)
	}
	return info
}

// Stbl returns the statement builder bound to the database.
func (d *DBInfo) Stbl() sq.StatementBuilderType {
	return d.stbl
}

// withTx runs fn inside a transaction that is committed when fn returns nil
// and rolled back otherwise. The builder handed to fn runs on the transaction.
func (d *DBInfo) withTx(ctx context.Context, fn func(stbl sq.StatementBuilderType) error) error {
	txn, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return d.HandleSQLError(err)
	}
	defer func() {
		_ = txn.Rollback()
	}()

	if err := fn(d.stbl.RunWith(txn)); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return d.HandleSQLError(err)
	}
	return nil
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	if errors.Is(err, context.Canceled) {
		return storage.ErrCancelled
	}

	var me *mysql.MySQLError
	if strings.Contains(err.Error(), "duplicate key value") || (errors.As(err, &me) && me.Number == 1062) {
		return storage.ErrCollision
	}

	return fmt.Errorf("sql error: %w", err)
}

// IsReady returns true if the connection to the datastore is successful
// and the datastore has been migrated far enough.
func IsReady(ctx context.Context, skipVersionCheck bool, db *sql.DB) (storage.ReadinessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// do ping first to ensure we have better error message
	// if error is due to connection issue.
	if pingErr := db.PingContext(ctx); pingErr != nil {
		return storage.ReadinessStatus{}, pingErr
	}

	if skipVersionCheck {
		return storage.ReadinessStatus{
			IsReady: true,
		}, nil
	}

	revision, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return storage.ReadinessStatus{}, err
	}

	if revision < build.MinimumSupportedDatastoreSchemaRevision {
		return storage.ReadinessStatus{
			Message: "datastore requires migrations: at revision '" +
				strconv.FormatInt(revision, 10) +
				"', but requires '" +
				strconv.FormatInt(build.MinimumSupportedDatastoreSchemaRevision, 10) +
				"'. Run '" + build.ProjectName + " migrate'.",
			IsReady: false,
		}, nil
	}
	return storage.ReadinessStatus{
		IsReady: true,
	}, nil
}
