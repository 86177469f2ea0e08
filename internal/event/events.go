// Package event defines the JSON payloads carried inside protocol frames.
package event

import (
	"time"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
)

// ============== inbound (client -> server) ==============

// AuthRequest is the first frame of every session.
type AuthRequest struct {
	Token    string `json:"token"`
	DeviceId string `json:"deviceId"`
	Platform string `json:"platform"`
}

// SendDirectRequest creates a direct message. ClientMsgId is echoed back in
// the ack so the client can correlate.
type SendDirectRequest struct {
	ClientMsgId string `json:"clientMsgId"`
	ReceiverId  int64  `json:"receiverId"`
	Content     string `json:"content"`
	ReplyToId   *int64 `json:"replyToId,omitempty"`
}

// SendWithFileRequest binds a pre-uploaded attachment to a pre-created
// message and triggers notification.
type SendWithFileRequest struct {
	ReceiverId   int64 `json:"receiverId"`
	MessageId    int64 `json:"messageId"`
	AttachmentId int64 `json:"attachmentId"`
}

type ConfirmDeliveryRequest struct {
	MessageId int64 `json:"messageId"`
}

type MarkReadRequest struct {
	MessageIds []int64 `json:"messageIds"`
}

type EditRequest struct {
	MessageId int64  `json:"messageId"`
	Content   string `json:"content"`
}

type DeleteRequest struct {
	MessageId int64 `json:"messageId"`
}

type ForwardRequest struct {
	MessageIds []int64 `json:"messageIds"`
	ReceiverId int64   `json:"receiverId"`
}

type ReactRequest struct {
	MessageId int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type TypingRequest struct {
	ReceiverId int64 `json:"receiverId"`
}

// ============== outbound (server -> client) ==============

// AuthAck closes the handshake.
type AuthAck struct {
	Code    int    `json:"code"`
	UserId  int64  `json:"userId"`
	Message string `json:"message"`
}

// MessagePush carries a full message to its audience.
type MessagePush struct {
	Message *model.Message `json:"message"`
}

// SentAck confirms the sender's own send.
type SentAck struct {
	ClientMsgId string    `json:"clientMsgId,omitempty"`
	MessageId   int64     `json:"messageId"`
	SentAt      time.Time `json:"sentAt"`
}

// DeliveredEvent tells the sender a direct message reached the receiver.
type DeliveredEvent struct {
	MessageId   int64     `json:"messageId"`
	ReceiverId  int64     `json:"receiverId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// ReadEvent tells the sender one reader read one message.
type ReadEvent struct {
	MessageId int64     `json:"messageId"`
	ReaderId  int64     `json:"readerId"`
	ReadAt    time.Time `json:"readAt"`
}

type EditedEvent struct {
	MessageId int64     `json:"messageId"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"editedAt"`
}

// DeletedEvent carries the audience snapshot taken before the row was
// mutated; hard delete destroys the row, so the ids here are the only way to
// address the notification afterwards.
type DeletedEvent struct {
	MessageId  int64  `json:"messageId"`
	Mode       string `json:"mode"`
	ReceiverId *int64 `json:"receiverId,omitempty"`
	GroupId    *int64 `json:"groupId,omitempty"`
	ChannelId  *int64 `json:"channelId,omitempty"`
}

// ReactionChangedEvent replaces the client's reaction view atomically:
// the full grouped summary rides along, never a delta.
type ReactionChangedEvent struct {
	MessageId    int64                 `json:"messageId"`
	Action       string                `json:"action"` // "added" or "removed"
	Emoji        string                `json:"emoji"`
	UserId       int64                 `json:"userId"`
	Summary      []model.ReactionGroup `json:"summary"`
	ActorReacted bool                  `json:"actorReacted"`
}

type PresenceEvent struct {
	UserId     int64      `json:"userId"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

type TypingEvent struct {
	FromUserId int64 `json:"fromUserId"`
}

// ErrorEvent reports a rejected or failed action back to the caller.
type ErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
