package model

import "time"

// Reaction is one live emoji reaction. At most one row exists per
// (MessageId, UserId); the ledger enforces this on insert, the unique index
// alone cannot express the toggle semantics.
type Reaction struct {
	Id        int64     `json:"id"`
	MessageId int64     `json:"messageId"`
	UserId    int64     `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReactionGroup is the presentation grouping of a message's reactions:
// one entry per emoji with the users behind it.
type ReactionGroup struct {
	Emoji   string  `json:"emoji"`
	Count   int     `json:"count"`
	UserIds []int64 `json:"userIds"`
}

// ReadReceipt records that a user has read a message. Rows are written once
// and never updated; their existence is the sole source of truth for read
// state.
type ReadReceipt struct {
	MessageId int64     `json:"messageId"`
	UserId    int64     `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}
