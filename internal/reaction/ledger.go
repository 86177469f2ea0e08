// Package reaction enforces the single-active-reaction-per-user-per-message
// invariant with toggle semantics.
package reaction

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/event"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/protocol"
)

const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
)

// Store is the reaction-table access the ledger needs.
type Store interface {
	FindByMessageAndUser(ctx context.Context, messageId, userId int64) (*model.Reaction, error)
	DeleteByMessageAndUser(ctx context.Context, messageId, userId int64) (bool, error)
	Insert(ctx context.Context, re *model.Reaction) error
	Summary(ctx context.Context, messageId int64) ([]model.ReactionGroup, error)
}

// MessageStore resolves the reacted-to message.
type MessageStore interface {
	FindByID(ctx context.Context, id int64) (*model.Message, error)
}

// Notifier dispatches the reaction-changed event.
type Notifier interface {
	SendToMessageAudience(ctx context.Context, msg *model.Message, actorId int64, eventType uint16, payload any) error
	SendToUser(userId int64, eventType uint16, payload any)
}

// Ledger applies reaction toggles and broadcasts the recomputed summary.
type Ledger struct {
	reactions Store
	messages  MessageStore
	notifier  Notifier
	logger    *slog.Logger
}

// NewLedger creates a reaction ledger.
func NewLedger(reactions Store, messages MessageStore, notifier Notifier) *Ledger {
	return &Ledger{
		reactions: reactions,
		messages:  messages,
		notifier:  notifier,
		logger:    slog.Default(),
	}
}

// React toggles or replaces the user's reaction on a message.
//
// Same emoji again removes it; a different emoji replaces the previous one,
// so at most one live row exists per (message, user). The delete-then-insert
// happens in application code because a unique key alone cannot express the
// toggle-off. Either branch recomputes the full grouped summary and ships it
// in the broadcast so clients replace their view atomically.
func (l *Ledger) React(ctx context.Context, userId, messageId int64, emoji string) (*event.ReactionChangedEvent, error) {
	if emoji == "" {
		return nil, apperrors.ErrInvalidParams
	}

	msg, err := l.messages.FindByID(ctx, messageId)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		// delete dominates: reacting to a tombstone is rejected like a
		// missing message
		return nil, apperrors.ErrMessageNotFound
	}

	existing, err := l.reactions.FindByMessageAndUser(ctx, messageId, userId)
	if err != nil {
		return nil, err
	}

	action := ActionAdded
	if existing != nil && existing.Emoji == emoji {
		// toggle-off
		if _, err := l.reactions.DeleteByMessageAndUser(ctx, messageId, userId); err != nil {
			return nil, err
		}
		action = ActionRemoved
	} else {
		// single-active-reaction: clear whatever was there, then insert
		if _, err := l.reactions.DeleteByMessageAndUser(ctx, messageId, userId); err != nil {
			return nil, err
		}
		err := l.reactions.Insert(ctx, &model.Reaction{
			MessageId: messageId,
			UserId:    userId,
			Emoji:     emoji,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return nil, err
		}
	}

	summary, err := l.reactions.Summary(ctx, messageId)
	if err != nil {
		return nil, err
	}

	evt := &event.ReactionChangedEvent{
		MessageId:    messageId,
		Action:       action,
		Emoji:        emoji,
		UserId:       userId,
		Summary:      summary,
		ActorReacted: action == ActionAdded,
	}

	if err := l.notifier.SendToMessageAudience(ctx, msg, userId, protocol.EventReactionChanged, evt); err != nil {
		l.logger.Warn("Failed to resolve reaction audience",
			"messageId", messageId, "error", err)
	}
	// the actor always gets the result directly
	l.notifier.SendToUser(userId, protocol.EventReactionChanged, evt)

	return evt, nil
}
