package model

import "time"

// User is the durable user record. The engine only touches the presence
// columns; everything else belongs to the excluded account CRUD.
type User struct {
	Id         int64      `json:"id"`
	Username   string     `json:"username"`
	Nickname   string     `json:"nickname"`
	IsOnline   bool       `json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// PolicySnapshot is one consistent read of the deployment-wide message
// policies. Obtained from the settings store, cached briefly by the caller.
type PolicySnapshot struct {
	EditingEnabled  bool
	DeletingEnabled bool
	EditWindow      time.Duration
	DeleteWindow    time.Duration
	DeleteMode      DeleteMode
}
