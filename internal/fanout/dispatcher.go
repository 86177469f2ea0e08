// Package fanout pushes life-cycle events to the live connections of their
// audience. There is no per-user outbound queue: a user with zero connections
// simply misses the event and discovers the durable state on reconnect.
package fanout

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/connection"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/protocol"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/workerpool"
)

// MembershipStore resolves group and channel audiences.
type MembershipStore interface {
	GroupMemberIds(ctx context.Context, groupId int64) ([]int64, error)
	ChannelSubscriberIds(ctx context.Context, channelId int64) ([]int64, error)
}

// ConnectionSource is the registry view the dispatcher needs.
type ConnectionSource interface {
	ConnectionsFor(userId int64) []connection.Handle
	OnlineUsers() []int64
}

// Dispatcher resolves audiences at dispatch time and fans frames out through
// the connection registry.
type Dispatcher struct {
	registry ConnectionSource
	members  MembershipStore
	pool     *workerpool.Pool
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(registry ConnectionSource, members MembershipStore, pool *workerpool.Pool) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		members:  members,
		pool:     pool,
		logger:   slog.Default(),
	}
}

// ResolveAudience derives the audience from the message's destination:
// the receiver for a direct message, the active member list for a group, the
// active subscriber list for a channel. Always resolved fresh, since
// membership may have changed since send time.
func (d *Dispatcher) ResolveAudience(ctx context.Context, msg *model.Message) ([]int64, error) {
	switch {
	case msg.ReceiverId != nil:
		return []int64{*msg.ReceiverId}, nil
	case msg.GroupId != nil:
		return d.members.GroupMemberIds(ctx, *msg.GroupId)
	case msg.ChannelId != nil:
		return d.members.ChannelSubscriberIds(ctx, *msg.ChannelId)
	default:
		return nil, nil
	}
}

// SendToUser dispatches one event to every live connection of one user.
// No connections means the event is dropped for that user.
func (d *Dispatcher) SendToUser(userId int64, eventType uint16, payload any) {
	frame, err := d.encode(eventType, payload)
	if err != nil {
		return
	}
	d.sendFrame(userId, eventType, frame)
}

// SendToUsers dispatches one event to many users, encoding once.
func (d *Dispatcher) SendToUsers(userIds []int64, eventType uint16, payload any) {
	frame, err := d.encode(eventType, payload)
	if err != nil {
		return
	}
	for _, userId := range userIds {
		d.sendFrame(userId, eventType, frame)
	}
}

// SendToMessageAudience resolves the message's audience and dispatches to
// everyone except the actor, who gets a direct ack instead.
func (d *Dispatcher) SendToMessageAudience(ctx context.Context, msg *model.Message, actorId int64, eventType uint16, payload any) error {
	audience, err := d.ResolveAudience(ctx, msg)
	if err != nil {
		return err
	}
	d.SendToUsers(filterOut(audience, actorId), eventType, payload)
	return nil
}

// Broadcast dispatches to every connected user except one. Used only for
// presence transitions, which render globally in the UI.
func (d *Dispatcher) Broadcast(eventType uint16, payload any, excludeUserId int64) {
	frame, err := d.encode(eventType, payload)
	if err != nil {
		return
	}
	for _, userId := range d.registry.OnlineUsers() {
		if userId == excludeUserId {
			continue
		}
		d.sendFrame(userId, eventType, frame)
	}
}

func (d *Dispatcher) encode(eventType uint16, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("Failed to marshal event payload",
			"event_type", eventType, "error", err)
		return nil, err
	}
	return protocol.EncodeFrame(eventType, body), nil
}

// sendFrame submits one write task per connection. A failed or full submit
// for one connection never aborts the others, and never rolls back the state
// mutation that produced the event.
func (d *Dispatcher) sendFrame(userId int64, eventType uint16, frame []byte) {
	for _, conn := range d.registry.ConnectionsFor(userId) {
		h := conn
		submitted := d.pool.TrySubmit(func() {
			if err := h.Send(frame); err != nil {
				d.logger.Warn("Failed to send event",
					"user_id", userId,
					"conn_id", h.ID(),
					"event_type", eventType,
					"error", err)
			}
		})
		if !submitted {
			d.logger.Warn("Fanout queue full, event dropped",
				"user_id", userId,
				"conn_id", h.ID(),
				"event_type", eventType)
		}
	}
}

func filterOut(ids []int64, excludeId int64) []int64 {
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != excludeId {
			result = append(result, id)
		}
	}
	return result
}
