package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vecinotech/vecinotech/internal/build"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("vecinotech/pkg/storage/sqlite")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlite."+name)
}

// HaversineFunction is the SQL function computing the great-circle distance
// in meters between (lat1, lon1) and (lat2, lon2).
const HaversineFunction = "haversine_m"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(HaversineFunction, 4, haversine)
}

func haversine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var deg [4]float64
	for i, arg := range args {
		switch v := arg.(type) {
		case float64:
			deg[i] = v
		case int64:
			deg[i] = float64(v)
		case nil:
			return nil, nil
		default:
			return nil, fmt.Errorf("%s: unsupported argument %T", HaversineFunction, arg)
		}
	}

	return geo.HaversineDistanceMeters(
		geo.Coordinate{Latitude: deg[0], Longitude: deg[1]},
		geo.Coordinate{Latitude: deg[2], Longitude: deg[3]},
	), nil
}

// Datastore provides a SQLite based implementation of [storage.Datastore].
type Datastore struct {
	*sqlcommon.Backend

	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

// Ensures that SQLite implements the Datastore interface.
var _ storage.Datastore = (*Datastore)(nil)

// PrepareDSN prepares a raw DSN for use with SQLite, specifying defaults for
// journal mode, busy timeout, transaction locking and time format.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}

		uri = uri[:i]
	}

	foundJournalMode := false
	foundBusyTimeout := false
	foundForeignKeys := false
	for _, val := range query["_pragma"] {
		switch {
		case strings.HasPrefix(val, "journal_mode"):
			foundJournalMode = true
		case strings.HasPrefix(val, "busy_timeout"):
			foundBusyTimeout = true
		case strings.HasPrefix(val, "foreign_keys"):
			foundForeignKeys = true
		}
	}

	if !foundJournalMode {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !foundBusyTimeout {
		query.Add("_pragma", "busy_timeout(100)")
	}
	if !foundForeignKeys {
		query.Add("_pragma", "foreign_keys(1)")
	}

	// Claim and complete read before writing, so take the write lock up front.
	if !query.Has("_txlock") {
		query.Set("_txlock", "immediate")
	}
	if !query.Has("_time_format") {
		query.Set("_time_format", "sqlite")
	}

	uri += "?" + query.Encode()

	return uri, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)
	dbInfo := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "sqlite")

	return &Datastore{
		Backend:          sqlcommon.NewBackend(dbInfo),
		stbl:             stbl,
		db:               db,
		dbInfo:           dbInfo,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// Close see [storage.Datastore].Close.
func (s *Datastore) Close() {
	if s.dbStatsCollector != nil {
		prometheus.Unregister(s.dbStatsCollector)
	}
	s.db.Close()
}

// CreateRequest see [storage.RequestBackend].CreateRequest.
func (s *Datastore) CreateRequest(ctx context.Context, r *storage.Request) error {
	ctx, span := startTrace(ctx, "CreateRequest")
	defer span.End()

	return busyRetry(func() error {
		return s.Backend.CreateRequest(ctx, r)
	})
}

// ClaimRequest see [storage.RequestBackend].ClaimRequest.
func (s *Datastore) ClaimRequest(ctx context.Context, id, volunteerID string, now time.Time) (*storage.Request, error) {
	ctx, span := startTrace(ctx, "ClaimRequest")
	defer span.End()

	var r *storage.Request
	err := busyRetry(func() error {
		var err error
		r, err = s.Backend.ClaimRequest(ctx, id, volunteerID, now)
		return err
	})
	return r, err
}

// CompleteRequest see [storage.RequestBackend].CompleteRequest.
func (s *Datastore) CompleteRequest(ctx context.Context, id, actorID string, now time.Time) (*storage.Request, bool, error) {
	ctx, span := startTrace(ctx, "CompleteRequest")
	defer span.End()

	var (
		r            *storage.Request
		transitioned bool
	)
	err := busyRetry(func() error {
		var err error
		r, transitioned, err = s.Backend.CompleteRequest(ctx, id, actorID, now)
		return err
	})
	return r, transitioned, err
}

func (s *Datastore) nearby(origin geo.Coordinate, radiusMeters float64) sq.Sqlizer {
	return sq.And{
		sqlcommon.OpenWithLocation(),
		sqlcommon.WithinBoundingBox(geo.BoundingBoxAround(origin, radiusMeters)),
		sq.Expr(HaversineFunction+"(latitude, longitude, ?, ?) <= ?", origin.Latitude, origin.Longitude, radiusMeters),
	}
}

// FindOpenNearby see [storage.RequestBackend].FindOpenNearby.
func (s *Datastore) FindOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64, limit int) ([]storage.NearbyRequest, error) {
	ctx, span := startTrace(ctx, "FindOpenNearby")
	defer span.End()

	limit = storage.NormalizeLimit(limit, storage.DefaultNearbyLimit, storage.DefaultNearbyLimit)
	rows, err := s.stbl.
		Select(sqlcommon.RequestColumns()...).
		Column(sq.Expr(HaversineFunction+"(latitude, longitude, ?, ?) AS distance", origin.Latitude, origin.Longitude)).
		From("help_request").
		Where(s.nearby(origin, radiusMeters)).
		OrderBy("distance ASC", "created_at ASC", "id ASC").
		Limit(uint64(limit)).
		QueryContext(ctx)
	if err != nil {
		return nil, HandleSQLError(err)
	}

	return sqlcommon.ScanNearby(s.dbInfo, rows)
}

// CountOpenNearby see [storage.RequestBackend].CountOpenNearby.
func (s *Datastore) CountOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64) (int, error) {
	ctx, span := startTrace(ctx, "CountOpenNearby")
	defer span.End()

	return sqlcommon.CountRows(ctx, s.dbInfo, s.stbl.
		Select("COUNT(*)").
		From("help_request").
		Where(s.nearby(origin, radiusMeters)))
}

// UpsertProfile see [storage.ProfileBackend].UpsertProfile.
func (s *Datastore) UpsertProfile(ctx context.Context, p *storage.UserProfile) error {
	ctx, span := startTrace(ctx, "UpsertProfile")
	defer span.End()

	return busyRetry(func() error {
		return s.Backend.UpsertProfile(ctx, p)
	})
}

// SetProfileLocation see [storage.ProfileBackend].SetProfileLocation.
func (s *Datastore) SetProfileLocation(ctx context.Context, userID string, loc *geo.Coordinate, now time.Time) error {
	ctx, span := startTrace(ctx, "SetProfileLocation")
	defer span.End()

	return busyRetry(func() error {
		return s.Backend.SetProfileLocation(ctx, userID, loc, now)
	})
}

// SetVolunteer see [storage.ProfileBackend].SetVolunteer.
func (s *Datastore) SetVolunteer(ctx context.Context, userID string, volunteer bool, now time.Time) (*storage.UserProfile, error) {
	ctx, span := startTrace(ctx, "SetVolunteer")
	defer span.End()

	var p *storage.UserProfile
	err := busyRetry(func() error {
		var err error
		p, err = s.Backend.SetVolunteer(ctx, userID, volunteer, now)
		return err
	})
	return p, err
}

// CreateMessage see [storage.MessageBackend].CreateMessage.
func (s *Datastore) CreateMessage(ctx context.Context, m *storage.Message) error {
	ctx, span := startTrace(ctx, "CreateMessage")
	defer span.End()

	return busyRetry(func() error {
		return s.Backend.CreateMessage(ctx, m)
	})
}

// MarkMessagesRead see [storage.MessageBackend].MarkMessagesRead.
func (s *Datastore) MarkMessagesRead(ctx context.Context, requestID, readerID string) (int, error) {
	ctx, span := startTrace(ctx, "MarkMessagesRead")
	defer span.End()

	var n int
	err := busyRetry(func() error {
		var err error
		n, err = s.Backend.MarkMessagesRead(ctx, requestID, readerID)
		return err
	})
	return n, err
}

// CreateRating see [storage.RatingBackend].CreateRating.
func (s *Datastore) CreateRating(ctx context.Context, r *storage.Rating) error {
	ctx, span := startTrace(ctx, "CreateRating")
	defer span.End()

	return busyRetry(func() error {
		return s.Backend.CreateRating(ctx, r)
	})
}

// IsReady see [sqlcommon.IsReady].
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	versionReady, err := sqlcommon.IsReady(ctx, s.versionReady, s.db)
	if err != nil {
		return versionReady, err
	}
	s.versionReady = versionReady.IsReady
	return versionReady, nil
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

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code()&0xFF == sqlite3.SQLITE_CONSTRAINT {
			return storage.ErrCollision
		}
	}

	return fmt.Errorf("sql error: %w", err)
}

// SQLite will return an SQLITE_BUSY error when the database is locked rather than waiting for the lock.
// This function retries the operation up to maxRetries times before returning the error.
func busyRetry(fn func() error) error {
	const maxRetries = 10
	for retries := 0; ; retries++ {
		err := fn()
		if err == nil {
			return nil
		}

		if isBusyError(err) {
			if retries < maxRetries {
				continue
			}

			return fmt.Errorf("sqlite busy error after %d retries: %w", maxRetries, err)
		}

		return err
	}
}

var busyErrors = map[int]struct{}{
	sqlite3.SQLITE_BUSY_RECOVERY:      {},
	sqlite3.SQLITE_BUSY_SNAPSHOT:      {},
	sqlite3.SQLITE_BUSY_TIMEOUT:       {},
	sqlite3.SQLITE_BUSY:               {},
	sqlite3.SQLITE_LOCKED_SHAREDCACHE: {},
	sqlite3.SQLITE_LOCKED:             {},
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	_, ok := busyErrors[sqliteErr.Code()]
	return ok
}
