package connection

import (
	"sync"
	"time"
)

// shardCount spreads registry locking so unrelated users do not serialize on
// one mutex. Must be a power of two.
const shardCount = 32

// Registry tracks every live connection handle per user. It is the only
// shared mutable in-memory structure in the process; nothing in it survives a
// restart, so every user is implicitly offline until they reconnect.
//
// The occupancy transitions 0->1 and 1->0 are decided under the shard lock,
// so the caller learns about them in the same logical step as the mutation;
// there is no window where a user looks online with zero connections.
type Registry struct {
	shards [shardCount]*registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	users map[int64]map[int64]Handle // userID -> connID -> Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{
			users: make(map[int64]map[int64]Handle),
		}
	}
	return r
}

func (r *Registry) shardFor(userID int64) *registryShard {
	return r.shards[uint64(userID)&(shardCount-1)]
}

// Register appends a handle to the user's set without clobbering concurrent
// appends. Returns true when this is the user's first live connection.
func (r *Registry) Register(h Handle) (first bool) {
	s := r.shardFor(h.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[h.UserID()]
	if !ok {
		conns = make(map[int64]Handle)
		s.users[h.UserID()] = conns
	}
	first = len(conns) == 0
	conns[h.ID()] = h
	return first
}

// Unregister removes exactly one handle. Returns true when the user's set
// became empty, i.e. the 1->0 transition.
func (r *Registry) Unregister(userID, connID int64) (last bool) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userID]
	if !ok {
		return false
	}
	if _, ok := conns[connID]; !ok {
		return false
	}

	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.users, userID)
		return true
	}
	return false
}

// ConnectionsFor returns the user's live handles. The slice is a snapshot.
func (r *Registry) ConnectionsFor(userID int64) []Handle {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns, ok := s.users[userID]
	if !ok {
		return nil
	}

	out := make([]Handle, 0, len(conns))
	for _, h := range conns {
		out = append(out, h)
	}
	return out
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID]) > 0
}

// OnlineUsers returns every user id with at least one live connection.
func (r *Registry) OnlineUsers() []int64 {
	var out []int64
	for _, s := range r.shards {
		s.mu.RLock()
		for userID := range s.users {
			out = append(out, userID)
		}
		s.mu.RUnlock()
	}
	return out
}

// Count returns the total number of live connections.
func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, conns := range s.users {
			total += len(conns)
		}
		s.mu.RUnlock()
	}
	return total
}

// AllConnections returns every live handle (heartbeat sweeps).
func (r *Registry) AllConnections() []Handle {
	var out []Handle
	for _, s := range r.shards {
		s.mu.RLock()
		for _, conns := range s.users {
			for _, h := range conns {
				out = append(out, h)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// idleSince is a helper for the sweeper.
func idleSince(h Handle, now time.Time) time.Duration {
	return now.Sub(h.LastActive())
}
