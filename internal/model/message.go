package model

import "time"

// DeleteMode selects what a successful delete leaves behind.
type DeleteMode int

const (
	// DeleteModeTombstone keeps the row with nulled content so clients can
	// render a "message deleted" placeholder.
	DeleteModeTombstone DeleteMode = 0
	// DeleteModeHard removes the row and its attachments entirely.
	DeleteModeHard DeleteMode = 1
)

func (m DeleteMode) String() string {
	if m == DeleteModeHard {
		return "hard"
	}
	return "tombstone"
}

// Message is one row of the message log. Exactly one of ReceiverId, GroupId,
// ChannelId is set and decides the audience of every event about the row.
type Message struct {
	Id                     int64      `json:"id"`
	SenderId               int64      `json:"senderId"`
	ReceiverId             *int64     `json:"receiverId,omitempty"`
	GroupId                *int64     `json:"groupId,omitempty"`
	ChannelId              *int64     `json:"channelId,omitempty"`
	Content                string     `json:"content"`
	SentAt                 time.Time  `json:"sentAt"`
	IsDelivered            bool       `json:"isDelivered"`
	DeliveredAt            *time.Time `json:"deliveredAt,omitempty"`
	IsEdited               bool       `json:"isEdited"`
	EditedAt               *time.Time `json:"editedAt,omitempty"`
	IsDeleted              bool       `json:"isDeleted"`
	DeletedAt              *time.Time `json:"deletedAt,omitempty"`
	ReplyToMessageId       *int64     `json:"replyToMessageId,omitempty"`
	ForwardedFromMessageId *int64     `json:"forwardedFromMessageId,omitempty"`
	ForwardedFromUserId    *int64     `json:"forwardedFromUserId,omitempty"`
}

// IsDirect reports whether the message targets a single receiver. Only direct
// messages carry the delivered flag; "delivered" is undefined for a fan-out
// audience.
func (m *Message) IsDirect() bool {
	return m.ReceiverId != nil
}

// Attachment is file metadata bound to a message. Upload and thumbnailing are
// owned by the excluded upload flow; the engine only binds, copies and deletes
// rows.
type Attachment struct {
	Id        int64      `json:"id"`
	MessageId int64      `json:"messageId"`
	FileName  string     `json:"fileName"`
	FilePath  string     `json:"filePath"`
	MimeType  string     `json:"mimeType"`
	SizeBytes int64      `json:"sizeBytes"`
	IsDeleted bool       `json:"isDeleted"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"-"`
}
