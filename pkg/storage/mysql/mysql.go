package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
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

var tracer = otel.Tracer("vecinotech/pkg/storage/mysql")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mysql."+name)
}

const upsertProfile = "ON DUPLICATE KEY UPDATE " +
	"display_name = VALUES(display_name), address_line = VALUES(address_line), " +
	"city = VALUES(city), postal_code = VALUES(postal_code), country = VALUES(country), " +
	"volunteer = VALUES(volunteer), updated_at = VALUES(updated_at)"

// distance is the great-circle distance in meters from the row to the
// point given as longitude then latitude.
const distance = "ST_Distance_Sphere(POINT(longitude, latitude), POINT(?, ?), 6371000)"

// Datastore provides a MySQL based implementation of [storage.Datastore].
type Datastore struct {
	*sqlcommon.Backend

	stbl             sq.StatementBuilderType
	db               *sql.DB
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

var _ storage.Datastore = (*Datastore)(nil)

// PrepareDSN applies configured credentials and the options the datastore
// relies on: DATETIME columns scanned as UTC time.Time values.
func PrepareDSN(uri, username, password string) (string, error) {
	dsnCfg, err := mysql.ParseDSN(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse mysql connection dsn: %w", err)
	}

	if username != "" {
		dsnCfg.User = username
	}
	if password != "" {
		dsnCfg.Passwd = password
	}
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC

	return dsnCfg.FormatDSN(), nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlcommon.WaitForDB(context.Background(), db, 0, cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)
	dbInfo := sqlcommon.NewDBInfo(db, stbl, sqlcommon.HandleSQLError, "mysql",
		sqlcommon.WithRowLock("FOR UPDATE"),
		sqlcommon.WithUpsertProfileSuffix(upsertProfile),
	)

	return &Datastore{
		Backend:          sqlcommon.NewBackend(dbInfo),
		stbl:             stbl,
		db:               db,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// Close closes the datastore and cleans up any residual resources.
func (m *Datastore) Close() {
	if m.dbStatsCollector != nil {
		prometheus.Unregister(m.dbStatsCollector)
	}
	m.db.Close()
}

func nearby(origin geo.Coordinate, radiusMeters float64) sq.Sqlizer {
	return sq.And{
		sqlcommon.OpenWithLocation(),
		sqlcommon.WithinBoundingBox(geo.BoundingBoxAround(origin, radiusMeters)),
		sq.Expr(distance+" <= ?", origin.Longitude, origin.Latitude, radiusMeters),
	}
}

// FindOpenNearby see [storage.RequestBackend].FindOpenNearby.
func (m *Datastore) FindOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64, limit int) ([]storage.NearbyRequest, error) {
	ctx, span := startTrace(ctx, "FindOpenNearby")
	defer span.End()

	limit = storage.NormalizeLimit(limit, storage.DefaultNearbyLimit, storage.DefaultNearbyLimit)
	rows, err := m.stbl.
		Select(sqlcommon.RequestColumns()...).
		Column(sq.Expr(distance+" AS distance", origin.Longitude, origin.Latitude)).
		From("help_request").
		Where(nearby(origin, radiusMeters)).
		OrderBy("distance ASC", "created_at ASC", "id ASC").
		Limit(uint64(limit)).
		QueryContext(ctx)
	if err != nil {
		return nil, sqlcommon.HandleSQLError(err)
	}

	return sqlcommon.ScanNearby(m.DBInfo, rows)
}

// CountOpenNearby see [storage.RequestBackend].CountOpenNearby.
func (m *Datastore) CountOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64) (int, error) {
	ctx, span := startTrace(ctx, "CountOpenNearby")
	defer span.End()

	return sqlcommon.CountRows(ctx, m.DBInfo, m.stbl.
		Select("COUNT(*)").
		From("help_request").
		Where(nearby(origin, radiusMeters)))
}

// IsReady see [sqlcommon.IsReady].
func (m *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	status, err := sqlcommon.IsReady(ctx, m.versionReady, m.db)
	if err != nil {
		return status, err
	}
	m.versionReady = status.IsReady
	return status, nil
}
