// Package handler maps inbound protocol frames onto the life-cycle, reaction
// and signaling operations.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/connection"
	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/event"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/fanout"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/lifecycle"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/protocol"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/reaction"
)

// Handler routes one decoded frame to its operation. Every handler runs in
// the session's read loop; storage I/O may block here but never inside the
// registry.
type Handler struct {
	lifecycle  *lifecycle.Service
	reactions  *reaction.Ledger
	dispatcher *fanout.Dispatcher
	logger     *slog.Logger
}

// New creates the event handler.
func New(lc *lifecycle.Service, ledger *reaction.Ledger, dispatcher *fanout.Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		lifecycle:  lc,
		reactions:  ledger,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handle dispatches one authenticated frame.
func (h *Handler) Handle(ctx context.Context, conn *connection.Connection, eventType uint16, body []byte) {
	var err error

	switch eventType {
	case protocol.EventSendDirect:
		err = h.handleSendDirect(ctx, conn, body)
	case protocol.EventSendWithFile:
		err = h.handleSendWithFile(ctx, conn, body)
	case protocol.EventConfirmDelivery:
		err = h.handleConfirmDelivery(ctx, conn, body)
	case protocol.EventMarkRead:
		err = h.handleMarkRead(ctx, conn, body)
	case protocol.EventEdit:
		err = h.handleEdit(ctx, conn, body)
	case protocol.EventDelete:
		err = h.handleDelete(ctx, conn, body)
	case protocol.EventForward:
		err = h.handleForward(ctx, conn, body)
	case protocol.EventReact:
		err = h.handleReact(ctx, conn, body)
	case protocol.EventTyping:
		err = h.handleTyping(conn, body, protocol.EventTypingSignal)
	case protocol.EventStoppedTyping:
		err = h.handleTyping(conn, body, protocol.EventStoppedSignal)
	default:
		h.logger.Debug("Unknown event type ignored",
			"event_type", eventType, "conn_id", conn.ID())
		return
	}

	if err != nil {
		h.logger.Debug("Event rejected",
			"event_type", eventType,
			"user_id", conn.UserID(),
			"code", apperrors.GetCode(err),
			"error", err)
		h.sendError(conn, err)
	}
}

func (h *Handler) handleSendDirect(ctx context.Context, conn *connection.Connection, body []byte) error {
	var req event.SendDirectRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	_, err := h.lifecycle.SendDirect(ctx, conn.UserID(), &req)
	return err
}

func (h *Handler) handleSendWithFile(ctx context.Context, conn *connection.Connection, body []byte) error {
	var req event.SendWithFileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	return h.lifecycle.AttachFile(ctx, conn.UserID(), &req)
}

func (h *Handler) handleConfirmDelivery(ctx context.Context, conn *connection.Connection, body []byte) error {
	var req event.ConfirmDeliveryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	return h.lifecycle.ConfirmDelivery(ctx, conn.UserID(), req.MessageId)
}

func (h *Handler) handleMarkRead(ctx context.Context, conn *connection.Connection, body []byte) error {
	var req event.MarkReadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	return h.lifecycle.MarkRead(ctx, conn.UserID(), req.MessageIds)
}

func (h *Handler) handleEdit(ctx context.Context, conn *connection.Connection, body []byte) error {
	var req event.EditRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	_, err := h.lifecycle.Edit(ctx, conn.UserID(), req.MessageId, req.Content)
	return err
}

func (h *Handler) handleDelete(ctx context.Context, conn *connection.Connection, body []byte) error {
	var req event.DeleteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	_, err := h.lifecycle.Delete(ctx, conn.UserID(), req.MessageId)
	return err
}

func (h *Handler) handleForward(ctx context.Context, conn *connection.Connection, body []byte) error {
	var req event.ForwardRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	_, err := h.lifecycle.Forward(ctx, conn.UserID(), req.MessageIds, req.ReceiverId)
	return err
}

func (h *Handler) handleReact(ctx context.Context, conn *connection.Connection, body []byte) error {
	var req event.ReactRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	_, err := h.reactions.React(ctx, conn.UserID(), req.MessageId, req.Emoji)
	return err
}

// handleTyping unicasts the signal to the receiver's live connections.
// Nothing is persisted and an offline receiver just misses it.
func (h *Handler) handleTyping(conn *connection.Connection, body []byte, outType uint16) error {
	var req event.TypingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ErrInvalidParams.Wrap(err)
	}
	h.dispatcher.SendToUser(req.ReceiverId, outType, &event.TypingEvent{
		FromUserId: conn.UserID(),
	})
	return nil
}

func (h *Handler) sendError(conn *connection.Connection, err error) {
	payload, marshalErr := json.Marshal(&event.ErrorEvent{
		Code:    apperrors.GetCode(err),
		Message: apperrors.GetMessage(err),
	})
	if marshalErr != nil {
		return
	}
	if sendErr := conn.Send(protocol.EncodeFrame(protocol.EventError, payload)); sendErr != nil {
		h.logger.Debug("Failed to send error frame",
			"conn_id", conn.ID(), "error", sendErr)
	}
}
