package sqlcommon

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

const profileTable = "user_profile"

var profileColumns = []string{
	"user_id", "display_name", "address_line", "city", "postal_code", "country",
	"volunteer", "latitude", "longitude", "updated_at",
}

func getProfile(ctx context.Context, stbl sq.StatementBuilderType, userID string) (*storage.UserProfile, error) {
	var (
		p        storage.UserProfile
		lat, lon sql.NullFloat64
	)
	err := stbl.
		Select(profileColumns...).
		From(profileTable).
		Where(sq.Eq{"user_id": userID}).
		QueryRowContext(ctx).
		Scan(&p.UserID, &p.DisplayName, &p.AddressLine, &p.City, &p.PostalCode, &p.Country,
			&p.Volunteer, &lat, &lon, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Location = coordinate(lat, lon)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func GetProfile(ctx context.Context, dbInfo *DBInfo, userID string) (*storage.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.GetProfile")
	defer span.End()

	p, err := getProfile(ctx, dbInfo.stbl, userID)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return p, nil
}

// UpsertProfile writes the profile fields, leaving a stored location untouched.
func UpsertProfile(ctx context.Context, dbInfo *DBInfo, p *storage.UserProfile) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.UpsertProfile")
	defer span.End()

	_, err := dbInfo.stbl.
		Insert(profileTable).
		Columns("user_id", "display_name", "address_line", "city", "postal_code", "country", "volunteer", "updated_at").
		Values(p.UserID, p.DisplayName, p.AddressLine, p.City, p.PostalCode, p.Country, p.Volunteer, storage.Timestamp(p.UpdatedAt)).
		Suffix(dbInfo.upsertProfileSuffix).
		ExecContext(ctx)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	return nil
}

// updateProfile applies the update and reports storage.ErrNotFound when no
// profile exists for userID. The existence check runs in the same
// transaction because some drivers report zero affected rows for an update
// that changes nothing.
func updateProfile(ctx context.Context, dbInfo *DBInfo, userID string, set map[string]interface{}) (*storage.UserProfile, error) {
	var updated *storage.UserProfile
	err := dbInfo.withTx(ctx, func(stbl sq.StatementBuilderType) error {
		_, err := stbl.
			Update(profileTable).
			SetMap(set).
			Where(sq.Eq{"user_id": userID}).
			ExecContext(ctx)
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}

		updated, err = getProfile(ctx, stbl, userID)
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}
		return nil
	})
	return updated, err
}

func SetProfileLocation(ctx context.Context, dbInfo *DBInfo, userID string, loc *geo.Coordinate, now time.Time) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.SetProfileLocation")
	defer span.End()

	lat, lon := nullCoordinate(loc)
	_, err := updateProfile(ctx, dbInfo, userID, map[string]interface{}{
		"latitude":   lat,
		"longitude":  lon,
		"updated_at": storage.Timestamp(now),
	})
	return err
}

func SetVolunteer(ctx context.Context, dbInfo *DBInfo, userID string, volunteer bool, now time.Time) (*storage.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.SetVolunteer")
	defer span.End()

	return updateProfile(ctx, dbInfo, userID, map[string]interface{}{
		"volunteer":  volunteer,
		"updated_at": storage.Timestamp(now),
	})
}
