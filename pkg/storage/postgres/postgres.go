package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vecinotech/vecinotech/internal/build"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("vecinotech/pkg/storage/postgres")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "postgres."+name)
}

// uniqueViolation is the SQLSTATE of a unique constraint violation.
const uniqueViolation = "23505"

// origin builds the request origin as a geography point. Arguments are
// longitude then latitude.
const origin = "ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography"

// Datastore provides a PostgreSQL based implementation of [storage.Datastore].
// Nearby searches run on the PostGIS location column.
type Datastore struct {
	*sqlcommon.Backend

	stbl             sq.StatementBuilderType
	db               *sql.DB
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

// Ensures that Datastore implements the Datastore interface.
var _ storage.Datastore = (*Datastore)(nil)

// withCredentials overrides the user and password in uri when configured.
func withCredentials(uri, username, password string) (string, error) {
	if username == "" && password == "" {
		return uri, nil
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse postgres connection uri: %w", err)
	}

	if username == "" && parsed.User != nil {
		username = parsed.User.Username()
	}

	switch {
	case password != "":
		parsed.User = url.UserPassword(username, password)
	case parsed.User != nil:
		if current, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(username, current)
		} else {
			parsed.User = url.User(username)
		}
	default:
		parsed.User = url.User(username)
	}

	return parsed.String(), nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := withCredentials(uri, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres connection: %w", err)
	}

	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlcommon.WaitForDB(context.Background(), db, 0, cfg.Logger); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db)
	dbInfo := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "postgres",
		sqlcommon.WithRowLock("FOR UPDATE"),
	)

	return &Datastore{
		Backend:          sqlcommon.NewBackend(dbInfo),
		stbl:             stbl,
		db:               db,
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

func nearby(o geo.Coordinate, radiusMeters float64) sq.Sqlizer {
	return sq.And{
		sq.Eq{"state": string(storage.StateOpen)},
		sq.NotEq{"location": nil},
		sq.Expr("ST_DWithin(location, "+origin+", ?, false)", o.Longitude, o.Latitude, radiusMeters),
	}
}

// FindOpenNearby see [storage.RequestBackend].FindOpenNearby.
func (s *Datastore) FindOpenNearby(ctx context.Context, o geo.Coordinate, radiusMeters float64, limit int) ([]storage.NearbyRequest, error) {
	ctx, span := startTrace(ctx, "FindOpenNearby")
	defer span.End()

	limit = storage.NormalizeLimit(limit, storage.DefaultNearbyLimit, storage.DefaultNearbyLimit)
	rows, err := s.stbl.
		Select(sqlcommon.RequestColumns()...).
		Column(sq.Expr("ST_Distance(location, "+origin+", false) AS distance", o.Longitude, o.Latitude)).
		From("help_request").
		Where(nearby(o, radiusMeters)).
		OrderBy("distance ASC", "created_at ASC", "id ASC").
		Limit(uint64(limit)).
		QueryContext(ctx)
	if err != nil {
		return nil, HandleSQLError(err)
	}

	return sqlcommon.ScanNearby(s.DBInfo, rows)
}

// CountOpenNearby see [storage.RequestBackend].CountOpenNearby.
func (s *Datastore) CountOpenNearby(ctx context.Context, o geo.Coordinate, radiusMeters float64) (int, error) {
	ctx, span := startTrace(ctx, "CountOpenNearby")
	defer span.End()

	return sqlcommon.CountRows(ctx, s.DBInfo, s.stbl.
		Select("COUNT(*)").
		From("help_request").
		Where(nearby(o, radiusMeters)))
}

// IsReady see [sqlcommon.IsReady].
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	status, err := sqlcommon.IsReady(ctx, s.versionReady, s.db)
	if err != nil {
		return status, err
	}
	s.versionReady = status.IsReady
	return status, nil
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error, args ...interface{}) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrCollision
	}

	return sqlcommon.HandleSQLError(err, args...)
}
