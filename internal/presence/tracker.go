// Package presence derives online/offline transitions from connection
// registry occupancy and reconciles undelivered direct messages when a user
// comes back.
package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/event"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/protocol"
)

// PresenceStore persists the presence columns of the user record.
type PresenceStore interface {
	SetOnline(ctx context.Context, userId int64, at time.Time) error
	SetOffline(ctx context.Context, userId int64, at time.Time) error
}

// Mirror is the fast-path presence cache. Best-effort.
type Mirror interface {
	MarkOnline(ctx context.Context, userId int64) error
	MarkOffline(ctx context.Context, userId int64, lastSeen time.Time) error
}

// ReplayStore is the message-table view the replay needs.
type ReplayStore interface {
	UndeliveredDirect(ctx context.Context, receiverId int64, since time.Time, limit int) ([]model.Message, error)
	MarkDeliveredBatch(ctx context.Context, ids []int64, at time.Time) ([]int64, error)
}

// Notifier dispatches presence and delivery events.
type Notifier interface {
	Broadcast(eventType uint16, payload any, excludeUserId int64)
	SendToUser(userId int64, eventType uint16, payload any)
}

// Tracker reacts to the registry's 0->1 and 1->0 occupancy transitions. The
// registry reports the transition under its own lock, so the tracker runs in
// the same logical step as the connect/disconnect that caused it.
type Tracker struct {
	users       PresenceStore
	mirror      Mirror
	messages    ReplayStore
	notifier    Notifier
	replayLimit int
	window      time.Duration
	logger      *slog.Logger
}

// NewTracker creates a tracker. window bounds the reconnect replay look-back.
func NewTracker(users PresenceStore, mirror Mirror, messages ReplayStore, notifier Notifier, window time.Duration, replayLimit int) *Tracker {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if replayLimit <= 0 {
		replayLimit = 500
	}
	return &Tracker{
		users:       users,
		mirror:      mirror,
		messages:    messages,
		notifier:    notifier,
		window:      window,
		replayLimit: replayLimit,
		logger:      slog.Default(),
	}
}

// HandleConnect runs on a user's first live connection: persist online state,
// broadcast the transition to everyone else, then replay undelivered direct
// messages inside the look-back window.
func (t *Tracker) HandleConnect(ctx context.Context, userId int64) {
	now := time.Now()

	persisted := true
	if err := t.users.SetOnline(ctx, userId, now); err != nil {
		persisted = false
		t.logger.Error("Failed to persist online state", "userId", userId, "error", err)
	}
	t.mirror.MarkOnline(ctx, userId)

	// online badges render everywhere in the UI, so this one event is a
	// global fan-out rather than an audience-scoped one
	if persisted {
		t.notifier.Broadcast(protocol.EventUserOnline, &event.PresenceEvent{
			UserId: userId,
			Online: true,
		}, userId)
	}

	t.replay(ctx, userId, now)
}

// HandleDisconnect runs when a user's last connection closes.
func (t *Tracker) HandleDisconnect(ctx context.Context, userId int64) {
	now := time.Now()

	if err := t.users.SetOffline(ctx, userId, now); err != nil {
		t.logger.Error("Failed to persist offline state", "userId", userId, "error", err)
		return
	}
	t.mirror.MarkOffline(ctx, userId, now)

	t.notifier.Broadcast(protocol.EventUserOffline, &event.PresenceEvent{
		UserId:     userId,
		Online:     false,
		LastSeenAt: &now,
	}, userId)
}

// replay marks undelivered direct messages for the reconnecting user as
// delivered and tells each sender. The per-row predicate in the batch update
// makes this exactly-once even when two first-connections race; anything
// older than the window stays undelivered until the receiver reads it.
func (t *Tracker) replay(ctx context.Context, userId int64, now time.Time) {
	since := now.Add(-t.window)

	msgs, err := t.messages.UndeliveredDirect(ctx, userId, since, t.replayLimit)
	if err != nil {
		t.logger.Error("Replay scan failed", "userId", userId, "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	ids := make([]int64, len(msgs))
	senders := make(map[int64]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.Id
		senders[m.Id] = m.SenderId
	}

	delivered, err := t.messages.MarkDeliveredBatch(ctx, ids, now)
	if err != nil {
		t.logger.Error("Replay batch update failed",
			"userId", userId,
			"delivered", len(delivered),
			"error", err)
		// fall through: rows already flipped still get their confirmations
	}

	for _, id := range delivered {
		t.notifier.SendToUser(senders[id], protocol.EventMessageDelivered, &event.DeliveredEvent{
			MessageId:   id,
			ReceiverId:  userId,
			DeliveredAt: now,
		})
	}

	if len(delivered) > 0 {
		t.logger.Info("Replayed deliveries on reconnect",
			"userId", userId,
			"count", len(delivered))
	}
}
