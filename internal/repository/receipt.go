package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
)

// ReceiptRepository owns read receipts. Rows are insert-only; their existence
// is the sole source of truth for "has user X read message M".
type ReceiptRepository struct {
	db *pgxpool.Pool
}

// NewReceiptRepository creates a receipt repository.
func NewReceiptRepository(db *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Insert writes one receipt. Returns false when the (message, user) pair
// already has one; re-marking is a no-op, not an error.
func (r *ReceiptRepository) Insert(ctx context.Context, messageId, userId int64, at time.Time) (bool, error) {
	query := `
		INSERT INTO read_receipts (message_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query, messageId, userId, at)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}
