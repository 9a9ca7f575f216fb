package sqlcommon

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/vecinotech/vecinotech/pkg/storage"
)

const ratingTable = "rating"

var ratingColumns = []string{"id", "request_id", "requester_id", "volunteer_id", "score", "comment", "created_at"}

// CreateRating stores the rating of a closed request. The volunteer is taken
// from the request row read in the same transaction.
func CreateRating(ctx context.Context, dbInfo *DBInfo, r *storage.Rating) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.CreateRating")
	defer span.End()

	return dbInfo.withTx(ctx, func(stbl sq.StatementBuilderType) error {
		req, err := requestForUpdate(ctx, dbInfo, stbl, r.RequestID)
		if err != nil {
			return err
		}
		if req.RequesterID != r.RequesterID {
			return storage.ErrNotParticipant
		}
		if req.State != storage.StateClosed || req.VolunteerID == "" {
			return storage.ErrInvalidState
		}
		r.VolunteerID = req.VolunteerID

		_, err = stbl.
			Insert(ratingTable).
			Columns(ratingColumns...).
			Values(r.ID, r.RequestID, r.RequesterID, r.VolunteerID, r.Score, r.Comment, storage.Timestamp(r.CreatedAt)).
			ExecContext(ctx)
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}
		return nil
	})
}

func scanRating(row RowScanner) (*storage.Rating, error) {
	var r storage.Rating
	if err := row.Scan(&r.ID, &r.RequestID, &r.RequesterID, &r.VolunteerID, &r.Score, &r.Comment, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func GetRatingByRequest(ctx context.Context, dbInfo *DBInfo, requestID string) (*storage.Rating, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.GetRatingByRequest")
	defer span.End()

	r, err := scanRating(dbInfo.stbl.
		Select(ratingColumns...).
		From(ratingTable).
		Where(sq.Eq{"request_id": requestID}).
		QueryRowContext(ctx))
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return r, nil
}

func ListRatingsByVolunteer(ctx context.Context, dbInfo *DBInfo, volunteerID string) ([]*storage.Rating, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListRatingsByVolunteer")
	defer span.End()

	rows, err := dbInfo.stbl.
		Select(ratingColumns...).
		From(ratingTable).
		Where(sq.Eq{"volunteer_id": volunteerID}).
		OrderBy("created_at DESC", "id DESC").
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	var ratings []*storage.Rating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return ratings, nil
}
