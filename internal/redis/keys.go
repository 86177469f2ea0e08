package redis

import (
	"fmt"
	"time"
)

const (
	// OnlineSetKey holds the ids of every user with at least one live
	// connection on this node.
	OnlineSetKey = "rt:presence:online"

	// LastSeenKeyPrefix prefixes per-user last-seen timestamps.
	LastSeenKeyPrefix = "rt:presence:lastseen:"

	// LastSeenTTL bounds how long a stale last-seen entry survives; the
	// durable user row stays the source of truth.
	LastSeenTTL = 30 * 24 * time.Hour
)

// BuildLastSeenKey builds the per-user last-seen key.
func BuildLastSeenKey(userId int64) string {
	return fmt.Sprintf("%s%d", LastSeenKeyPrefix, userId)
}
