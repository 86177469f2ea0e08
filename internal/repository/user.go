package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
)

// UserRepository touches only the presence columns of the user table; account
// CRUD lives elsewhere.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a user repository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// SetOnline marks the user online and stamps last-seen.
func (r *UserRepository) SetOnline(ctx context.Context, userId int64, at time.Time) error {
	query := `UPDATE users SET is_online = TRUE, last_seen_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, userId, at)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// SetOffline marks the user offline and stamps last-seen.
func (r *UserRepository) SetOffline(ctx context.Context, userId int64, at time.Time) error {
	query := `UPDATE users SET is_online = FALSE, last_seen_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, userId, at)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// ResetAllOnline clears every online flag. Called once on startup: the
// connection registry is rebuilt from zero, so no user can be online yet.
func (r *UserRepository) ResetAllOnline(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET is_online = FALSE WHERE is_online = TRUE`)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}
