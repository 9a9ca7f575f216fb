package sqlcommon

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/vecinotech/vecinotech/pkg/storage"
)

const messageTable = "message"

var messageColumns = []string{"id", "request_id", "sender_id", "body", "sent_at", "is_read"}

// CreateMessage inserts the message after checking, in the same transaction,
// that the request is IN_PROGRESS and the sender takes part in it.
func CreateMessage(ctx context.Context, dbInfo *DBInfo, m *storage.Message) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.CreateMessage")
	defer span.End()

	return dbInfo.withTx(ctx, func(stbl sq.StatementBuilderType) error {
		r, err := requestForUpdate(ctx, dbInfo, stbl, m.RequestID)
		if err != nil {
			return err
		}
		if !r.IsParticipant(m.SenderID) {
			return storage.ErrNotParticipant
		}
		if r.State != storage.StateInProgress {
			return storage.ErrInvalidState
		}

		_, err = stbl.
			Insert(messageTable).
			Columns(messageColumns...).
			Values(m.ID, m.RequestID, m.SenderID, m.Body, storage.Timestamp(m.SentAt), m.Read).
			ExecContext(ctx)
		if err != nil {
			return dbInfo.HandleSQLError(err)
		}
		return nil
	})
}

func ListMessages(ctx context.Context, dbInfo *DBInfo, requestID string) ([]*storage.Message, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListMessages")
	defer span.End()

	rows, err := dbInfo.stbl.
		Select(messageColumns...).
		From(messageTable).
		Where(sq.Eq{"request_id": requestID}).
		OrderBy("sent_at ASC", "id ASC").
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	var messages []*storage.Message
	for rows.Next() {
		var m storage.Message
		if err := rows.Scan(&m.ID, &m.RequestID, &m.SenderID, &m.Body, &m.SentAt, &m.Read); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		m.SentAt = m.SentAt.UTC()
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return messages, nil
}

func unreadFor(requestID, readerID string) sq.Sqlizer {
	return sq.And{
		sq.Eq{"request_id": requestID, "is_read": false},
		sq.NotEq{"sender_id": readerID},
	}
}

// MarkMessagesRead flips every unread message not sent by readerID.
func MarkMessagesRead(ctx context.Context, dbInfo *DBInfo, requestID, readerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.MarkMessagesRead")
	defer span.End()

	res, err := dbInfo.stbl.
		Update(messageTable).
		Set("is_read", true).
		Where(unreadFor(requestID, readerID)).
		ExecContext(ctx)
	if err != nil {
		return 0, dbInfo.HandleSQLError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbInfo.HandleSQLError(err)
	}
	return int(n), nil
}

func CountUnread(ctx context.Context, dbInfo *DBInfo, requestID, readerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.CountUnread")
	defer span.End()

	return CountRows(ctx, dbInfo, dbInfo.stbl.
		Select("COUNT(*)").
		From(messageTable).
		Where(unreadFor(requestID, readerID)))
}
