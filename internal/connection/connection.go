package connection

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/webtransport-go"
)

var ErrConnectionClosed = errors.New("connection closed")

var connIDCounter int64

// Handle is one live duplex channel belonging to one user. The registry and
// the fan-out only see this interface; tests substitute fakes.
type Handle interface {
	ID() int64
	UserID() int64
	ConnectedAt() time.Time
	LastActive() time.Time
	Send(data []byte) error
	Close()
}

// Connection is the WebTransport-backed Handle. Writes are serialized through
// a buffered channel and a single write loop per connection.
type Connection struct {
	id          int64
	userID      int64
	deviceID    string
	platform    string
	session     *webtransport.Session
	logger      *slog.Logger
	writeChan   chan []byte
	closeChan   chan struct{}
	closeOnce   sync.Once
	connectedAt time.Time
	lastActive  atomic.Int64 // unix milli
}

// NewFromWebTransport wraps a freshly accepted session and starts its write
// loop. The connection is anonymous until BindUser.
func NewFromWebTransport(session *webtransport.Session, logger *slog.Logger) *Connection {
	id := atomic.AddInt64(&connIDCounter, 1)
	c := &Connection{
		id:          id,
		session:     session,
		logger:      logger,
		writeChan:   make(chan []byte, 256),
		closeChan:   make(chan struct{}),
		connectedAt: time.Now(),
	}
	c.lastActive.Store(c.connectedAt.UnixMilli())
	go c.writeLoop()
	return c
}

func (c *Connection) ID() int64 {
	return c.id
}

func (c *Connection) UserID() int64 {
	return c.userID
}

func (c *Connection) DeviceID() string {
	return c.deviceID
}

func (c *Connection) Platform() string {
	return c.platform
}

func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// BindUser attaches the authenticated identity. Called exactly once, after
// the auth frame and before registration.
func (c *Connection) BindUser(userID int64, deviceID, platform string) {
	c.userID = userID
	c.deviceID = deviceID
	c.platform = platform
}

// Send queues a frame for the write loop. Fails fast once closed.
func (c *Connection) Send(data []byte) error {
	select {
	case c.writeChan <- data:
		return nil
	case <-c.closeChan:
		return ErrConnectionClosed
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeChan:
			stream, err := c.session.OpenStream()
			if err != nil {
				c.logger.Error("Failed to open stream", "conn_id", c.id, "error", err)
				continue
			}
			if _, err := stream.Write(data); err != nil {
				c.logger.Error("Failed to write to stream", "conn_id", c.id, "error", err)
			}
			stream.Close()
		case <-c.closeChan:
			return
		}
	}
}

// Close tears the session down. Idempotent.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.session.CloseWithError(0, "connection closed")
	})
}

// UpdateActive stamps activity for the heartbeat sweeper.
func (c *Connection) UpdateActive() {
	c.lastActive.Store(time.Now().UnixMilli())
}

func (c *Connection) LastActive() time.Time {
	return time.UnixMilli(c.lastActive.Load())
}
