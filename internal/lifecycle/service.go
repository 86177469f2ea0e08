// Package lifecycle owns the legal state transitions of a message between
// Sent, Delivered, per-recipient Read, Edited and Deleted.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/event"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/protocol"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/snowflake"
)

// MessageStore is the message-table access the state machine needs. Flag
// mutations carry their own row predicates, so two racing operations on the
// same message resolve through the store, not a lock here.
type MessageStore interface {
	Insert(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id int64) (*model.Message, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) (bool, error)
	UpdateContent(ctx context.Context, id int64, content string, at time.Time) (bool, error)
	Tombstone(ctx context.Context, id int64, at time.Time) (bool, error)
	HardDelete(ctx context.Context, id int64) (bool, error)
}

// ReceiptStore writes read receipts.
type ReceiptStore interface {
	Insert(ctx context.Context, messageId, userId int64, at time.Time) (bool, error)
}

// AttachmentStore manages attachment metadata rows.
type AttachmentStore interface {
	BindToMessage(ctx context.Context, attachmentId, messageId int64) (bool, error)
	CopyToMessage(ctx context.Context, srcMessageId, dstMessageId int64, at time.Time) error
	MarkDeletedByMessage(ctx context.Context, messageId int64, at time.Time) error
	DeleteByMessage(ctx context.Context, messageId int64) error
}

// Policy reads the deployment-wide edit/delete policies.
type Policy interface {
	Snapshot(ctx context.Context) (model.PolicySnapshot, error)
}

// PermissionChecker is the boundary to the excluded permission layer.
type PermissionChecker interface {
	CanSendDirect(ctx context.Context, senderId, receiverId int64) error
}

// Notifier dispatches life-cycle events.
type Notifier interface {
	ResolveAudience(ctx context.Context, msg *model.Message) ([]int64, error)
	SendToUser(userId int64, eventType uint16, payload any)
	SendToUsers(userIds []int64, eventType uint16, payload any)
	SendToMessageAudience(ctx context.Context, msg *model.Message, actorId int64, eventType uint16, payload any) error
}

// Service is the message life-cycle state machine.
type Service struct {
	messages    MessageStore
	receipts    ReceiptStore
	attachments AttachmentStore
	policy      Policy
	perms       PermissionChecker
	notifier    Notifier
	ids         *snowflake.Node
	logger      *slog.Logger
}

// NewService creates the state machine.
func NewService(
	messages MessageStore,
	receipts ReceiptStore,
	attachments AttachmentStore,
	policy Policy,
	perms PermissionChecker,
	notifier Notifier,
	ids *snowflake.Node,
) *Service {
	return &Service{
		messages:    messages,
		receipts:    receipts,
		attachments: attachments,
		policy:      policy,
		perms:       perms,
		notifier:    notifier,
		ids:         ids,
		logger:      slog.Default(),
	}
}

// SendDirect creates a Sent message for a single receiver, notifies the
// receiver's live connections and acks the sender. The message starts
// undelivered; delivery happens through an explicit confirmation or the
// reconnect replay, never implicitly here.
func (s *Service) SendDirect(ctx context.Context, senderId int64, req *event.SendDirectRequest) (*model.Message, error) {
	if req.Content == "" {
		return nil, apperrors.ErrEmptyContent
	}
	if req.ReceiverId <= 0 {
		return nil, apperrors.ErrInvalidParams
	}
	if err := s.perms.CanSendDirect(ctx, senderId, req.ReceiverId); err != nil {
		return nil, err
	}

	receiverId := req.ReceiverId
	msg := &model.Message{
		Id:               s.ids.Generate().Int64(),
		SenderId:         senderId,
		ReceiverId:       &receiverId,
		Content:          req.Content,
		SentAt:           time.Now(),
		ReplyToMessageId: req.ReplyToId,
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	s.notifier.SendToUser(receiverId, protocol.EventMessageReceived, &event.MessagePush{Message: msg})
	s.notifier.SendToUser(senderId, protocol.EventMessageSentAck, &event.SentAck{
		ClientMsgId: req.ClientMsgId,
		MessageId:   msg.Id,
		SentAt:      msg.SentAt,
	})

	return msg, nil
}

// AttachFile binds a pre-uploaded attachment to a pre-created message (both
// owned by the excluded upload flow) and re-notifies the audience.
func (s *Service) AttachFile(ctx context.Context, senderId int64, req *event.SendWithFileRequest) error {
	msg, err := s.messages.FindByID(ctx, req.MessageId)
	if err != nil {
		return err
	}
	if msg.SenderId != senderId {
		return apperrors.ErrNotSender
	}

	bound, err := s.attachments.BindToMessage(ctx, req.AttachmentId, msg.Id)
	if err != nil {
		return err
	}
	if !bound {
		return apperrors.ErrAttachmentNotFound
	}

	if err := s.notifier.SendToMessageAudience(ctx, msg, senderId, protocol.EventMessageReceived, &event.MessagePush{Message: msg}); err != nil {
		s.logger.Warn("Failed to resolve attach audience", "messageId", msg.Id, "error", err)
	}
	s.notifier.SendToUser(senderId, protocol.EventMessageSentAck, &event.SentAck{
		MessageId: msg.Id,
		SentAt:    msg.SentAt,
	})
	return nil
}

// ConfirmDelivery marks a direct message Delivered on behalf of its receiver.
// Idempotent: already-delivered, deleted and missing messages are no-ops.
func (s *Service) ConfirmDelivery(ctx context.Context, receiverId, messageId int64) error {
	msg, err := s.messages.FindByID(ctx, messageId)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrMessageNotFound) {
			return nil
		}
		return err
	}
	if !msg.IsDirect() || *msg.ReceiverId != receiverId {
		return apperrors.ErrNotReceiver
	}

	now := time.Now()
	flipped, err := s.messages.MarkDelivered(ctx, messageId, now)
	if err != nil {
		return err
	}
	if !flipped {
		// already delivered, or deleted in between
		return nil
	}

	s.notifier.SendToUser(msg.SenderId, protocol.EventMessageDelivered, &event.DeliveredEvent{
		MessageId:   messageId,
		ReceiverId:  receiverId,
		DeliveredAt: now,
	})
	return nil
}

// MarkRead inserts read receipts for the given messages and notifies each
// sender. Idempotent per (message, reader): exactly one receipt row and one
// notification ever exist for the pair. Missing and deleted messages are
// skipped silently.
func (s *Service) MarkRead(ctx context.Context, readerId int64, messageIds []int64) error {
	now := time.Now()

	for _, id := range messageIds {
		msg, err := s.messages.FindByID(ctx, id)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrMessageNotFound) {
				continue
			}
			return err
		}
		if msg.IsDeleted || msg.SenderId == readerId {
			continue
		}
		if msg.IsDirect() && *msg.ReceiverId != readerId {
			return apperrors.ErrNotReceiver
		}

		inserted, err := s.receipts.Insert(ctx, id, readerId, now)
		if err != nil {
			return err
		}
		if !inserted {
			continue
		}

		s.notifier.SendToUser(msg.SenderId, protocol.EventMessageRead, &event.ReadEvent{
			MessageId: id,
			ReaderId:  readerId,
			ReadAt:    now,
		})
	}
	return nil
}

// Edit replaces the content of the sender's own message within the policy
// window. Editing never resets delivery or read state.
func (s *Service) Edit(ctx context.Context, senderId, messageId int64, content string) (*event.EditedEvent, error) {
	if content == "" {
		return nil, apperrors.ErrEmptyContent
	}

	policy, err := s.policy.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !policy.EditingEnabled {
		return nil, apperrors.ErrEditingDisabled
	}

	msg, err := s.messages.FindByID(ctx, messageId)
	if err != nil {
		return nil, err
	}
	if msg.SenderId != senderId {
		return nil, apperrors.ErrNotSender
	}
	if msg.IsDeleted {
		return nil, apperrors.ErrMessageNotFound
	}

	now := time.Now()
	if now.Sub(msg.SentAt) > policy.EditWindow {
		return nil, apperrors.ErrEditWindowClosed
	}

	updated, err := s.messages.UpdateContent(ctx, messageId, content, now)
	if err != nil {
		return nil, err
	}
	if !updated {
		// lost the race against a delete
		return nil, apperrors.ErrMessageNotFound
	}

	evt := &event.EditedEvent{
		MessageId: messageId,
		Content:   content,
		EditedAt:  now,
	}

	if err := s.notifier.SendToMessageAudience(ctx, msg, senderId, protocol.EventMessageEdited, evt); err != nil {
		s.logger.Warn("Failed to resolve edit audience", "messageId", messageId, "error", err)
	}
	s.notifier.SendToUser(senderId, protocol.EventMessageEdited, evt)

	return evt, nil
}

// Delete removes the sender's own message within the policy window, either
// tombstoning it or hard-deleting it per the global mode.
//
// The audience is snapshotted before any mutation: hard delete destroys the
// row, and the row is the only way to address the notification.
func (s *Service) Delete(ctx context.Context, senderId, messageId int64) (*event.DeletedEvent, error) {
	policy, err := s.policy.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !policy.DeletingEnabled {
		return nil, apperrors.ErrDeletingDisabled
	}

	msg, err := s.messages.FindByID(ctx, messageId)
	if err != nil {
		return nil, err
	}
	if msg.SenderId != senderId {
		return nil, apperrors.ErrNotSender
	}
	if msg.IsDeleted {
		return nil, apperrors.ErrMessageNotFound
	}

	now := time.Now()
	if now.Sub(msg.SentAt) > policy.DeleteWindow {
		return nil, apperrors.ErrDeleteWindowClosed
	}

	audience, err := s.notifier.ResolveAudience(ctx, msg)
	if err != nil {
		return nil, err
	}

	evt := &event.DeletedEvent{
		MessageId:  messageId,
		Mode:       policy.DeleteMode.String(),
		ReceiverId: msg.ReceiverId,
		GroupId:    msg.GroupId,
		ChannelId:  msg.ChannelId,
	}

	if policy.DeleteMode == model.DeleteModeHard {
		if err := s.attachments.DeleteByMessage(ctx, messageId); err != nil {
			return nil, err
		}
		removed, err := s.messages.HardDelete(ctx, messageId)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, apperrors.ErrMessageNotFound
		}
	} else {
		tombstoned, err := s.messages.Tombstone(ctx, messageId, now)
		if err != nil {
			return nil, err
		}
		if !tombstoned {
			return nil, apperrors.ErrMessageNotFound
		}
		if err := s.attachments.MarkDeletedByMessage(ctx, messageId, now); err != nil {
			s.logger.Warn("Failed to mark attachments deleted",
				"messageId", messageId, "error", err)
		}
	}

	s.notifier.SendToUsers(filterOut(audience, senderId), protocol.EventMessageDeleted, evt)
	s.notifier.SendToUser(senderId, protocol.EventMessageDeleted, evt)

	return evt, nil
}

// Forward copies each source message into a brand-new message to the given
// receiver, attributed to the forwarding user and pointing back at the
// original. Sources that are missing or deleted are skipped.
func (s *Service) Forward(ctx context.Context, forwarderId int64, messageIds []int64, receiverId int64) ([]*model.Message, error) {
	if receiverId <= 0 || len(messageIds) == 0 {
		return nil, apperrors.ErrInvalidParams
	}
	if err := s.perms.CanSendDirect(ctx, forwarderId, receiverId); err != nil {
		return nil, err
	}

	created := make([]*model.Message, 0, len(messageIds))
	for _, srcId := range messageIds {
		src, err := s.messages.FindByID(ctx, srcId)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrMessageNotFound) {
				s.logger.Debug("Forward source missing, skipped", "messageId", srcId)
				continue
			}
			return created, err
		}
		if src.IsDeleted {
			continue
		}

		now := time.Now()
		rcv := receiverId
		srcMsgId := src.Id
		srcSenderId := src.SenderId
		msg := &model.Message{
			Id:                     s.ids.Generate().Int64(),
			SenderId:               forwarderId,
			ReceiverId:             &rcv,
			Content:                src.Content,
			SentAt:                 now,
			ForwardedFromMessageId: &srcMsgId,
			ForwardedFromUserId:    &srcSenderId,
		}

		if err := s.messages.Insert(ctx, msg); err != nil {
			return created, err
		}
		if err := s.attachments.CopyToMessage(ctx, src.Id, msg.Id, now); err != nil {
			s.logger.Warn("Failed to copy attachments on forward",
				"sourceId", src.Id, "messageId", msg.Id, "error", err)
		}

		s.notifier.SendToUser(receiverId, protocol.EventMessageReceived, &event.MessagePush{Message: msg})
		s.notifier.SendToUser(forwarderId, protocol.EventMessageSentAck, &event.SentAck{
			MessageId: msg.Id,
			SentAt:    now,
		})

		created = append(created, msg)
	}

	return created, nil
}

func filterOut(ids []int64, excludeId int64) []int64 {
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != excludeId {
			result = append(result, id)
		}
	}
	return result
}
