package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
)

const messageColumns = `
	id, sender_id, receiver_id, group_id, channel_id, COALESCE(content, ''),
	sent_at, is_delivered, delivered_at, is_edited, edited_at,
	is_deleted, deleted_at, reply_to_message_id,
	forwarded_from_message_id, forwarded_from_user_id`

// MessageRepository owns the message table. Life-cycle flags are mutated with
// row-scoped predicates, never read-modify-write: the WHERE clause is the
// compare half of the compare-and-set.
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a message repository.
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert creates a message row with a caller-assigned id.
func (r *MessageRepository) Insert(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (
			id, sender_id, receiver_id, group_id, channel_id, content, sent_at,
			is_delivered, reply_to_message_id,
			forwarded_from_message_id, forwarded_from_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		msg.Id,
		msg.SenderId,
		msg.ReceiverId,
		msg.GroupId,
		msg.ChannelId,
		msg.Content,
		msg.SentAt,
		msg.ReplyToMessageId,
		msg.ForwardedFromMessageId,
		msg.ForwardedFromUserId,
	)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// FindByID returns one message or ErrMessageNotFound.
func (r *MessageRepository) FindByID(ctx context.Context, id int64) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return msg, nil
}

// MarkDelivered flips is_delivered on a live direct message. Returns false
// when the row is already delivered, deleted, not direct, or gone: the caller
// treats all of those as a no-op.
func (r *MessageRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE messages SET is_delivered = TRUE, delivered_at = $2
		WHERE id = $1 AND receiver_id IS NOT NULL
		  AND is_delivered = FALSE AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDeliveredBatch flips is_delivered on many direct messages in one round
// trip and returns the ids that actually transitioned. Used by the reconnect
// replay; the per-row predicate keeps concurrent replays exactly-once.
func (r *MessageRepository) MarkDeliveredBatch(ctx context.Context, ids []int64, at time.Time) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		UPDATE messages SET is_delivered = TRUE, delivered_at = $2
		WHERE id = $1 AND receiver_id IS NOT NULL
		  AND is_delivered = FALSE AND is_deleted = FALSE
	`

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(query, id, at)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	delivered := make([]int64, 0, len(ids))
	for _, id := range ids {
		tag, err := br.Exec()
		if err != nil {
			return delivered, apperrors.ErrDBError.Wrap(err)
		}
		if tag.RowsAffected() > 0 {
			delivered = append(delivered, id)
		}
	}
	return delivered, nil
}

// UndeliveredDirect lists live undelivered direct messages for a receiver
// sent within the look-back window, oldest first.
func (r *MessageRepository) UndeliveredDirect(ctx context.Context, receiverId int64, since time.Time, limit int) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE receiver_id = $1 AND is_delivered = FALSE AND is_deleted = FALSE
		  AND sent_at >= $2
		ORDER BY sent_at ASC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, receiverId, since, limit)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		out = append(out, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return out, nil
}

// UpdateContent replaces the content of a live message and flags it edited.
func (r *MessageRepository) UpdateContent(ctx context.Context, id int64, content string, at time.Time) (bool, error) {
	query := `
		UPDATE messages SET content = $2, is_edited = TRUE, edited_at = $3
		WHERE id = $1 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, content, at)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Tombstone nulls the content and flags the row deleted; the row stays
// addressable so clients can render a placeholder.
func (r *MessageRepository) Tombstone(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE messages SET content = NULL, is_deleted = TRUE, deleted_at = $2
		WHERE id = $1 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// HardDelete removes the row entirely.
func (r *MessageRepository) HardDelete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var msg model.Message
	err := row.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.GroupId,
		&msg.ChannelId,
		&msg.Content,
		&msg.SentAt,
		&msg.IsDelivered,
		&msg.DeliveredAt,
		&msg.IsEdited,
		&msg.EditedAt,
		&msg.IsDeleted,
		&msg.DeletedAt,
		&msg.ReplyToMessageId,
		&msg.ForwardedFromMessageId,
		&msg.ForwardedFromUserId,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
