package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
)

// ReactionRepository owns reaction rows.
type ReactionRepository struct {
	db *pgxpool.Pool
}

// NewReactionRepository creates a reaction repository.
func NewReactionRepository(db *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// FindByMessageAndUser returns the user's live reaction on a message, or nil.
func (r *ReactionRepository) FindByMessageAndUser(ctx context.Context, messageId, userId int64) (*model.Reaction, error) {
	query := `
		SELECT id, message_id, user_id, emoji, created_at
		FROM reactions WHERE message_id = $1 AND user_id = $2
	`

	var re model.Reaction
	err := r.db.QueryRow(ctx, query, messageId, userId).Scan(
		&re.Id,
		&re.MessageId,
		&re.UserId,
		&re.Emoji,
		&re.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return &re, nil
}

// DeleteByMessageAndUser removes the user's reaction regardless of emoji.
// This is the enforcement point of the single-active-reaction invariant.
func (r *ReactionRepository) DeleteByMessageAndUser(ctx context.Context, messageId, userId int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM reactions WHERE message_id = $1 AND user_id = $2`,
		messageId, userId)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Insert writes a new reaction row.
func (r *ReactionRepository) Insert(ctx context.Context, re *model.Reaction) error {
	query := `
		INSERT INTO reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		re.MessageId,
		re.UserId,
		re.Emoji,
		re.CreatedAt,
	).Scan(&re.Id)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// Summary recomputes the grouped view of a message's reactions: one entry per
// emoji with the reacting users, most popular first.
func (r *ReactionRepository) Summary(ctx context.Context, messageId int64) ([]model.ReactionGroup, error) {
	query := `
		SELECT emoji, array_agg(user_id ORDER BY created_at)
		FROM reactions
		WHERE message_id = $1
		GROUP BY emoji
		ORDER BY count(*) DESC, min(created_at) ASC
	`

	rows, err := r.db.Query(ctx, query, messageId)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var out []model.ReactionGroup
	for rows.Next() {
		var g model.ReactionGroup
		if err := rows.Scan(&g.Emoji, &g.UserIds); err != nil {
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		g.Count = len(g.UserIds)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return out, nil
}
