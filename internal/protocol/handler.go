package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/quic-go/webtransport-go"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/connection"
	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/event"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/jwt"
)

var ErrAuthRequired = errors.New("first frame must be auth")

// Events consumes authenticated frames.
type Events interface {
	Handle(ctx context.Context, conn *connection.Connection, eventType uint16, body []byte)
}

// PresenceTracker observes the 0->1 occupancy transition.
type PresenceTracker interface {
	HandleConnect(ctx context.Context, userId int64)
}

// Handler owns one session's frame loop: the auth handshake first, then the
// event stream.
type Handler struct {
	registry *connection.Registry
	tracker  PresenceTracker
	tokens   *jwt.Service
	events   Events
	logger   *slog.Logger
}

// NewHandler creates a session handler.
func NewHandler(registry *connection.Registry, tracker PresenceTracker, tokens *jwt.Service, events Events, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		tracker:  tracker,
		tokens:   tokens,
		events:   events,
		logger:   logger,
	}
}

// HandleFirstFrame enforces the handshake: the first frame of the first
// stream must be a valid auth request. On success the connection is bound and
// registered, and the presence transition (including the delivery replay)
// runs before any other frame is read.
func (h *Handler) HandleFirstFrame(ctx context.Context, conn *connection.Connection, stream *webtransport.Stream) error {
	eventType, body, err := ReadFrame(stream)
	if err != nil {
		return err
	}
	if eventType != EventAuth {
		return ErrAuthRequired
	}

	var req event.AuthRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}

	claims, err := h.tokens.ValidateToken(req.Token)
	if err != nil {
		return apperrors.ErrUnauthenticated.Wrap(err)
	}

	conn.BindUser(claims.UserID, req.DeviceId, req.Platform)
	first := h.registry.Register(conn)

	h.logger.Info("Connection authenticated",
		"conn_id", conn.ID(),
		"user_id", claims.UserID,
		"platform", req.Platform,
		"first", first)

	if first {
		h.tracker.HandleConnect(ctx, claims.UserID)
	}

	ack, _ := json.Marshal(&event.AuthAck{
		Code:    apperrors.CodeSuccess,
		UserId:  claims.UserID,
		Message: "success",
	})
	h.sendResponse(stream, EventAuthAck, ack)

	return nil
}

// HandleStream reads frames until the stream closes. The client uses this one
// duplex stream for all of its traffic; server pushes travel on fresh streams
// through the connection's write loop.
func (h *Handler) HandleStream(ctx context.Context, conn *connection.Connection, stream *webtransport.Stream) {
	defer stream.Close()

	for {
		eventType, body, err := ReadFrame(stream)
		if err != nil {
			if err != io.EOF {
				h.logger.Debug("Failed to read frame",
					"conn_id", conn.ID(), "error", err)
			}
			return
		}

		conn.UpdateActive()

		if eventType == EventHeartbeat {
			h.sendResponse(stream, EventHeartbeat, nil)
			continue
		}

		h.events.Handle(ctx, conn, eventType, body)
	}
}

func (h *Handler) sendResponse(stream *webtransport.Stream, eventType uint16, body []byte) {
	if _, err := stream.Write(EncodeFrame(eventType, body)); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}
