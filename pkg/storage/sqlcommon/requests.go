package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

const requestTable = "help_request"

var requestColumns = []string{
	"id", "requester_id", "volunteer_id", "title", "description", "category",
	"state", "latitude", "longitude", "created_at", "updated_at",
}

// RequestColumns returns the columns read by [ScanRequest], in order.
func RequestColumns() []string {
	cols := make([]string, len(requestColumns))
	copy(cols, requestColumns)
	return cols
}

// RowScanner is implemented by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanRequest reads the [RequestColumns] followed by any extra destinations.
func ScanRequest(row RowScanner, extra ...any) (*storage.Request, error) {
	var (
		r         storage.Request
		volunteer sql.NullString
		lat, lon  sql.NullFloat64
		state     string
	)
	dest := append([]any{
		&r.ID, &r.RequesterID, &volunteer, &r.Title, &r.Description, &r.Category,
		&state, &lat, &lon, &r.CreatedAt, &r.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	r.VolunteerID = volunteer.String
	r.State = storage.RequestState(state)
	r.Location = coordinate(lat, lon)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func coordinate(lat, lon sql.NullFloat64) *geo.Coordinate {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &geo.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64}
}

func nullCoordinate(c *geo.Coordinate) (lat, lon sql.NullFloat64) {
	if c == nil {
		return lat, lon
	}
	return sql.NullFloat64{Float64: c.Latitude, Valid: true}, sql.NullFloat64{Float64: c.Longitude, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateRequest inserts a new request.
func CreateRequest(ctx context.Context, dbInfo *DBInfo, r *storage.Request) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.CreateRequest")
	defer span.End()

	lat, lon := nullCoordinate(r.Location)
	_, err := dbInfo.stbl.
		Insert(requestTable).
		Columns(requestColumns...).
		Values(
			r.ID, r.RequesterID, nullString(r.VolunteerID), r.Title, r.Description, r.Category,
			string(r.State), lat, lon, storage.Timestamp(r.CreatedAt), storage.Timestamp(r.UpdatedAt),
		).
		ExecContext(ctx)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	return nil
}

func getRequest(ctx context.Context, stbl sq.StatementBuilderType, id, suffix string) (*storage.Request, error) {
	sb := stbl.
		Select(requestColumns...).
		From(requestTable).
		Where(sq.Eq{"id": id})
	if suffix != "" {
		sb = sb.Suffix(suffix)
	}
	return ScanRequest(sb.QueryRowContext(ctx))
}

// GetRequest reads one request.
func GetRequest(ctx context.Context, dbInfo *DBInfo, id string) (*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.GetRequest")
	defer span.End()

	r, err := getRequest(ctx, dbInfo.stbl, id, "")
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return r, nil
}

// ClaimRequest assigns the volunteer with one conditional update. When
// nothing matched, the row is read in the same transaction to tell why.
func ClaimRequest(ctx context.Context, dbInfo *DBInfo, id, volunteerID string, now time.Time) (*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ClaimRequest")
	defer span.End()

	var claimed *storage.Request
	err := dbInfo.withTx(ctx, func(stbl sq.StatementBuilderType) error {
		res, err := stbl.
			Update(requestTable).
			Set("volunteer_id", volunteerID).
			Set("state", string(storage.StateInProgress)).
			Set("updated_at", storage.Timestamp(now)).
			Where(sq.Eq{"id": id, "state": string(storage.StateOpen)}).
			Where(sq.NotEq{"requester_id": volunteerID}).
			ExecContext(ctx)
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}

		current, err := getRequest(ctx, stbl, id, "")
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}

		if affected == 0 {
			if current.RequesterID == volunteerID {
				return storage.ErrOwnRequest
			}
			return storage.ErrNotClaimable
		}

		claimed = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteRequest closes an IN_PROGRESS request inside one transaction.
func CompleteRequest(ctx context.Context, dbInfo *DBInfo, id, actorID string, now time.Time) (*storage.Request, bool, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.CompleteRequest")
	defer span.End()

	var (
		result       *storage.Request
		transitioned bool
	)
	err := dbInfo.withTx(ctx, func(stbl sq.StatementBuilderType) error {
		current, err := getRequest(ctx, stbl, id, dbInfo.lockSuffix)
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}

		if !current.IsParticipant(actorID) {
			return storage.ErrNotParticipant
		}

		switch current.State {
		case storage.StateClosed:
			result = current
			return nil
		case storage.StateInProgress:
		default:
			return storage.ErrInvalidState
		}

		res, err := stbl.
			Update(requestTable).
			Set("state", string(storage.StateClosed)).
			Set("updated_at", storage.Timestamp(now)).
			Where(sq.Eq{"id": id, "state": string(storage.StateInProgress)}).
			ExecContext(ctx)
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}

		result, err = getRequest(ctx, stbl, id, "")
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}
		transitioned = affected == 1
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, transitioned, nil
}

func listRequests(ctx context.Context, dbInfo *DBInfo, where sq.Sqlizer, limit uint64) ([]*storage.Request, error) {
	sb := dbInfo.stbl.
		Select(requestColumns...).
		From(requestTable).
		Where(where).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		sb = sb.Limit(limit)
	}

	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	var requests []*storage.Request
	for rows.Next() {
		r, err := ScanRequest(rows)
		if err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return requests, nil
}

func ListRequestsByRequester(ctx context.Context, dbInfo *DBInfo, userID string) ([]*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListRequestsByRequester")
	defer span.End()

	return listRequests(ctx, dbInfo, sq.Eq{"requester_id": userID}, 0)
}

func ListRequestsByVolunteer(ctx context.Context, dbInfo *DBInfo, userID string) ([]*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListRequestsByVolunteer")
	defer span.End()

	return listRequests(ctx, dbInfo, sq.Eq{"volunteer_id": userID}, 0)
}

func ListOpenWithLocation(ctx context.Context, dbInfo *DBInfo, limit int) ([]*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListOpenWithLocation")
	defer span.End()

	limit = storage.NormalizeLimit(limit, storage.MaxMapListing, storage.MaxMapListing)
	return listRequests(ctx, dbInfo, OpenWithLocation(), uint64(limit))
}

// OpenWithLocation filters the rows that take part in nearby searches.
func OpenWithLocation() sq.Sqlizer {
	return sq.And{
		sq.Eq{"state": string(storage.StateOpen)},
		sq.NotEq{"latitude": nil},
		sq.NotEq{"longitude": nil},
	}
}

// WithinBoundingBox is the index friendly prefilter for nearby searches.
func WithinBoundingBox(box geo.BoundingBox) sq.Sqlizer {
	return sq.And{
		sq.GtOrEq{"latitude": box.MinLatitude},
		sq.LtOrEq{"latitude": box.MaxLatitude},
		sq.GtOrEq{"longitude": box.MinLongitude},
		sq.LtOrEq{"longitude": box.MaxLongitude},
	}
}

// ScanNearby reads rows selected as [RequestColumns] followed by a distance column.
func ScanNearby(dbInfo *DBInfo, rows *sql.Rows) ([]storage.NearbyRequest, error) {
	defer rows.Close()

	var nearby []storage.NearbyRequest
	for rows.Next() {
		var distance float64
		r, err := ScanRequest(rows, &distance)
		if err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		nearby = append(nearby, storage.NearbyRequest{Request: r, DistanceMeters: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return nearby, nil
}

// CountRows runs a COUNT(*) built by the caller.
func CountRows(ctx context.Context, dbInfo *DBInfo, sb sq.SelectBuilder) (int, error) {
	var n int
	if err := sb.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, dbInfo.HandleSQLError(err)
	}
	return n, nil
}

// Leaderboard ranks volunteers by closed requests, then by id.
func Leaderboard(ctx context.Context, dbInfo *DBInfo, limit int) ([]storage.LeaderboardEntry, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.Leaderboard")
	defer span.End()

	limit = storage.NormalizeLimit(limit, storage.DefaultLeaderboard, storage.MaxLeaderboard)
	rows, err := dbInfo.stbl.
		Select("r.volunteer_id", "COALESCE(p.display_name, '')", "COUNT(*) AS closed").
		From(requestTable + " r").
		LeftJoin("user_profile p ON p.user_id = r.volunteer_id").
		Where(sq.Eq{"r.state": string(storage.StateClosed)}).
		GroupBy("r.volunteer_id", "p.display_name").
		OrderBy("closed DESC", "r.volunteer_id ASC").
		Limit(uint64(limit)).
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	var entries []storage.LeaderboardEntry
	for rows.Next() {
		var e storage.LeaderboardEntry
		if err := rows.Scan(&e.VolunteerID, &e.DisplayName, &e.Closed); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return entries, nil
}

// requestForUpdate reads the request inside a transaction, translating a
// missing row to storage.ErrNotFound.
func requestForUpdate(ctx context.Context, dbInfo *DBInfo, stbl sq.StatementBuilderType, id string) (*storage.Request, error) {
	r, err := getRequest(ctx, stbl, id, dbInfo.lockSuffix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return r, nil
}
