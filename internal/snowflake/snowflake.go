package snowflake

import (
	"sync"
	"time"
)

const (
	// custom epoch: 2024-01-01 00:00:00 UTC
	epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = -1 ^ (-1 << nodeBits)
	maxSequence = -1 ^ (-1 << sequenceBits)

	nodeShift      = sequenceBits
	timestampShift = nodeBits + sequenceBits
)

// ID is a 63-bit time-ordered identifier.
type ID int64

// Int64 returns the raw value.
func (id ID) Int64() int64 {
	return int64(id)
}

// Node generates snowflake IDs for one node id.
type Node struct {
	mu       sync.Mutex
	nodeID   int64
	sequence int64
	lastTime int64
}

// NewNode creates a generator. Out-of-range node ids fall back to 1.
func NewNode(nodeID int64) (*Node, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		nodeID = 1
	}
	return &Node{
		nodeID:   nodeID,
		sequence: 0,
	}, nil
}

// Generate returns the next ID. Safe for concurrent use.
func (n *Node) Generate() ID {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == n.lastTime {
		n.sequence = (n.sequence + 1) & maxSequence
		if n.sequence == 0 {
			// sequence exhausted, spin to the next millisecond
			for now <= n.lastTime {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		n.sequence = 0
	}

	n.lastTime = now

	id := ((now - epoch) << timestampShift) |
		(n.nodeID << nodeShift) |
		n.sequence

	return ID(id)
}
