package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
)

// MembershipRepository resolves group and channel audiences. Membership CRUD
// belongs to the excluded back-office; this side only reads active rows, and
// always at dispatch time. Audiences are never cached on a message.
type MembershipRepository struct {
	db *pgxpool.Pool
}

// NewMembershipRepository creates a membership repository.
func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// GroupMemberIds lists active (non-left, non-removed) members of a group.
func (r *MembershipRepository) GroupMemberIds(ctx context.Context, groupId int64) ([]int64, error) {
	query := `
		SELECT user_id FROM group_members
		WHERE group_id = $1 AND left_at IS NULL AND removed_at IS NULL
	`
	return r.queryIds(ctx, query, groupId)
}

// ChannelSubscriberIds lists active subscribers of a channel.
func (r *MembershipRepository) ChannelSubscriberIds(ctx context.Context, channelId int64) ([]int64, error) {
	query := `
		SELECT user_id FROM channel_subscribers
		WHERE channel_id = $1 AND unsubscribed_at IS NULL
	`
	return r.queryIds(ctx, query, channelId)
}

func (r *MembershipRepository) queryIds(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return out, nil
}
