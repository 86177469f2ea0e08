package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
)

// SettingsRepository reads the deployment-wide message policies maintained by
// the admin back-office: edit/delete windows, feature switches and the delete
// mode. The engine never writes this table.
type SettingsRepository struct {
	db *pgxpool.Pool

	cacheTTL time.Duration
	mu       sync.Mutex
	cached   model.PolicySnapshot
	cachedAt time.Time
}

// NewSettingsRepository creates a settings reader with a short cache so every
// edit/delete does not hit the table.
func NewSettingsRepository(db *pgxpool.Pool, cacheTTL time.Duration) *SettingsRepository {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &SettingsRepository{db: db, cacheTTL: cacheTTL}
}

// Snapshot returns one consistent read of the policies, served from cache
// within the TTL.
func (r *SettingsRepository) Snapshot(ctx context.Context) (model.PolicySnapshot, error) {
	r.mu.Lock()
	if time.Since(r.cachedAt) < r.cacheTTL {
		snap := r.cached
		r.mu.Unlock()
		return snap, nil
	}
	r.mu.Unlock()

	query := `
		SELECT editing_enabled, deleting_enabled,
		       edit_window_seconds, delete_window_seconds, hard_delete
		FROM message_settings WHERE id = 1
	`

	var snap model.PolicySnapshot
	var editSeconds, deleteSeconds int64
	var hardDelete bool
	err := r.db.QueryRow(ctx, query).Scan(
		&snap.EditingEnabled,
		&snap.DeletingEnabled,
		&editSeconds,
		&deleteSeconds,
		&hardDelete,
	)
	if err != nil {
		return model.PolicySnapshot{}, apperrors.ErrDBError.Wrap(err)
	}

	snap.EditWindow = time.Duration(editSeconds) * time.Second
	snap.DeleteWindow = time.Duration(deleteSeconds) * time.Second
	if hardDelete {
		snap.DeleteMode = model.DeleteModeHard
	}

	r.mu.Lock()
	r.cached = snap
	r.cachedAt = time.Now()
	r.mu.Unlock()

	return snap, nil
}
