package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
)

// PermissionRepository answers "is this sender allowed to post to this
// destination". The full permission model lives in the excluded CRUD layer;
// this side checks only what the delivery engine must not bypass: the
// receiver exists and is active, and has not blocked the sender.
type PermissionRepository struct {
	db *pgxpool.Pool
}

// NewPermissionRepository creates a permission checker.
func NewPermissionRepository(db *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// CanSendDirect validates a direct send.
func (r *PermissionRepository) CanSendDirect(ctx context.Context, senderId, receiverId int64) error {
	var active bool
	err := r.db.QueryRow(ctx,
		`SELECT is_active FROM users WHERE id = $1`, receiverId).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.ErrDBError.Wrap(err)
	}
	if !active {
		return apperrors.ErrUserNotFound
	}

	var blocked bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM user_blocks
			WHERE blocker_id = $1 AND blocked_id = $2
		)`, receiverId, senderId).Scan(&blocked)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	if blocked {
		return apperrors.ErrBlocked
	}

	return nil
}
