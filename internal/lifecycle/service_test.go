package lifecycle

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/event"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/model"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/protocol"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/snowflake"
)

// fakeMessages mirrors the row-predicate semantics of the real repository:
// every flag mutation checks the current row state and reports whether it
// transitioned.
type fakeMessages struct {
	rows map[int64]*model.Message
}

func newFakeMessages(msgs ...*model.Message) *fakeMessages {
	f := &fakeMessages{rows: make(map[int64]*model.Message)}
	for _, m := range msgs {
		f.rows[m.Id] = m
	}
	return f
}

func (f *fakeMessages) Insert(_ context.Context, msg *model.Message) error {
	cp := *msg
	f.rows[msg.Id] = &cp
	return nil
}

func (f *fakeMessages) FindByID(_ context.Context, id int64) (*model.Message, error) {
	if m, ok := f.rows[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, apperrors.ErrMessageNotFound
}

func (f *fakeMessages) MarkDelivered(_ context.Context, id int64, at time.Time) (bool, error) {
	m, ok := f.rows[id]
	if !ok || m.ReceiverId == nil || m.IsDelivered || m.IsDeleted {
		return false, nil
	}
	m.IsDelivered = true
	m.DeliveredAt = &at
	return true, nil
}

func (f *fakeMessages) UpdateContent(_ context.Context, id int64, content string, at time.Time) (bool, error) {
	m, ok := f.rows[id]
	if !ok || m.IsDeleted {
		return false, nil
	}
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &at
	return true, nil
}

func (f *fakeMessages) Tombstone(_ context.Context, id int64, at time.Time) (bool, error) {
	m, ok := f.rows[id]
	if !ok || m.IsDeleted {
		return false, nil
	}
	m.Content = ""
	m.IsDeleted = true
	m.DeletedAt = &at
	return true, nil
}

func (f *fakeMessages) HardDelete(_ context.Context, id int64) (bool, error) {
	if _, ok := f.rows[id]; !ok {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

type fakeReceipts struct {
	rows map[[2]int64]time.Time
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{rows: make(map[[2]int64]time.Time)}
}

func (f *fakeReceipts) Insert(_ context.Context, messageId, userId int64, at time.Time) (bool, error) {
	key := [2]int64{messageId, userId}
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	f.rows[key] = at
	return true, nil
}

type fakeAttachments struct {
	bound       map[int64]int64 // attachmentId -> messageId
	copied      [][2]int64      // src -> dst
	softDeleted []int64
	hardDeleted []int64
	missing     map[int64]bool
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{bound: make(map[int64]int64), missing: make(map[int64]bool)}
}

func (f *fakeAttachments) BindToMessage(_ context.Context, attachmentId, messageId int64) (bool, error) {
	if f.missing[attachmentId] {
		return false, nil
	}
	f.bound[attachmentId] = messageId
	return true, nil
}

func (f *fakeAttachments) CopyToMessage(_ context.Context, srcMessageId, dstMessageId int64, _ time.Time) error {
	f.copied = append(f.copied, [2]int64{srcMessageId, dstMessageId})
	return nil
}

func (f *fakeAttachments) MarkDeletedByMessage(_ context.Context, messageId int64, _ time.Time) error {
	f.softDeleted = append(f.softDeleted, messageId)
	return nil
}

func (f *fakeAttachments) DeleteByMessage(_ context.Context, messageId int64) error {
	f.hardDeleted = append(f.hardDeleted, messageId)
	return nil
}

type fakePolicy struct {
	snap model.PolicySnapshot
}

func (f *fakePolicy) Snapshot(_ context.Context) (model.PolicySnapshot, error) {
	return f.snap, nil
}

func openPolicy() *fakePolicy {
	return &fakePolicy{snap: model.PolicySnapshot{
		EditingEnabled:  true,
		DeletingEnabled: true,
		EditWindow:      15 * time.Minute,
		DeleteWindow:    15 * time.Minute,
	}}
}

type fakePerms struct {
	err error
}

func (f *fakePerms) CanSendDirect(_ context.Context, _, _ int64) error {
	return f.err
}

type sent struct {
	userId    int64
	eventType uint16
	payload   any
}

type fakeNotifier struct {
	sends []sent
}

func (f *fakeNotifier) ResolveAudience(_ context.Context, msg *model.Message) ([]int64, error) {
	if msg.ReceiverId != nil {
		return []int64{*msg.ReceiverId}, nil
	}
	return nil, nil
}

func (f *fakeNotifier) SendToUser(userId int64, eventType uint16, payload any) {
	f.sends = append(f.sends, sent{userId, eventType, payload})
}

func (f *fakeNotifier) SendToUsers(userIds []int64, eventType uint16, payload any) {
	for _, id := range userIds {
		f.sends = append(f.sends, sent{id, eventType, payload})
	}
}

func (f *fakeNotifier) SendToMessageAudience(ctx context.Context, msg *model.Message, actorId int64, eventType uint16, payload any) error {
	audience, _ := f.ResolveAudience(ctx, msg)
	for _, id := range audience {
		if id != actorId {
			f.sends = append(f.sends, sent{id, eventType, payload})
		}
	}
	return nil
}

func (f *fakeNotifier) countTo(userId int64, eventType uint16) int {
	n := 0
	for _, s := range f.sends {
		if s.userId == userId && s.eventType == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	svc         *Service
	messages    *fakeMessages
	receipts    *fakeReceipts
	attachments *fakeAttachments
	policy      *fakePolicy
	perms       *fakePerms
	notifier    *fakeNotifier
}

func newFixture(msgs ...*model.Message) *fixture {
	f := &fixture{
		messages:    newFakeMessages(msgs...),
		receipts:    newFakeReceipts(),
		attachments: newFakeAttachments(),
		policy:      openPolicy(),
		perms:       &fakePerms{},
		notifier:    &fakeNotifier{},
	}
	ids, _ := snowflake.NewNode(1)
	f.svc = NewService(f.messages, f.receipts, f.attachments, f.policy, f.perms, f.notifier, ids)
	return f
}

func direct(id, senderId, receiverId int64, sentAt time.Time) *model.Message {
	rcv := receiverId
	return &model.Message{
		Id: id, SenderId: senderId, ReceiverId: &rcv,
		Content: "hello", SentAt: sentAt,
	}
}

// ============== SendDirect ==============

func TestSendDirect(t *testing.T) {
	f := newFixture()

	msg, err := f.svc.SendDirect(context.Background(), 100, &event.SendDirectRequest{
		ClientMsgId: "c-1",
		ReceiverId:  200,
		Content:     "hi",
	})
	if err != nil {
		t.Fatalf("SendDirect failed: %v", err)
	}

	if msg.Id == 0 {
		t.Error("Expected an assigned id")
	}
	if msg.IsDelivered {
		t.Error("Expected the message to start undelivered")
	}
	if _, ok := f.messages.rows[msg.Id]; !ok {
		t.Error("Expected the message persisted")
	}

	if got := f.notifier.countTo(200, protocol.EventMessageReceived); got != 1 {
		t.Errorf("Expected 1 push to the receiver, got %d", got)
	}
	if got := f.notifier.countTo(100, protocol.EventMessageSentAck); got != 1 {
		t.Errorf("Expected 1 ack to the sender, got %d", got)
	}
}

func TestSendDirect_EmptyContent(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SendDirect(context.Background(), 100, &event.SendDirectRequest{
		ReceiverId: 200,
	})
	if !apperrors.Is(err, apperrors.ErrEmptyContent) {
		t.Errorf("Expected ErrEmptyContent, got %v", err)
	}
}

func TestSendDirect_Blocked(t *testing.T) {
	f := newFixture()
	f.perms.err = apperrors.ErrBlocked

	_, err := f.svc.SendDirect(context.Background(), 100, &event.SendDirectRequest{
		ReceiverId: 200,
		Content:    "hi",
	})
	if !apperrors.Is(err, apperrors.ErrBlocked) {
		t.Errorf("Expected ErrBlocked, got %v", err)
	}
	if len(f.messages.rows) != 0 {
		t.Error("Expected nothing persisted for a blocked send")
	}
}

// ============== ConfirmDelivery ==============

func TestConfirmDelivery(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	if err := f.svc.ConfirmDelivery(context.Background(), 200, 1); err != nil {
		t.Fatalf("ConfirmDelivery failed: %v", err)
	}

	if !f.messages.rows[1].IsDelivered {
		t.Error("Expected the message marked delivered")
	}
	if got := f.notifier.countTo(100, protocol.EventMessageDelivered); got != 1 {
		t.Errorf("Expected 1 delivered event to the sender, got %d", got)
	}
}

func TestConfirmDelivery_Idempotent(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))
	ctx := context.Background()

	f.svc.ConfirmDelivery(ctx, 200, 1)
	if err := f.svc.ConfirmDelivery(ctx, 200, 1); err != nil {
		t.Fatalf("Second ConfirmDelivery failed: %v", err)
	}

	if got := f.notifier.countTo(100, protocol.EventMessageDelivered); got != 1 {
		t.Errorf("Expected exactly 1 delivered event, got %d", got)
	}
}

func TestConfirmDelivery_WrongReceiver(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	err := f.svc.ConfirmDelivery(context.Background(), 300, 1)
	if !apperrors.Is(err, apperrors.ErrNotReceiver) {
		t.Errorf("Expected ErrNotReceiver, got %v", err)
	}
}

func TestConfirmDelivery_MissingMessage(t *testing.T) {
	f := newFixture()

	if err := f.svc.ConfirmDelivery(context.Background(), 200, 999); err != nil {
		t.Errorf("Expected a missing message to be a no-op, got %v", err)
	}
}

// ============== MarkRead ==============

func TestMarkRead(t *testing.T) {
	f := newFixture(
		direct(1, 100, 200, time.Now()),
		direct(2, 100, 200, time.Now()),
	)

	if err := f.svc.MarkRead(context.Background(), 200, []int64{1, 2}); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	if got := f.notifier.countTo(100, protocol.EventMessageRead); got != 2 {
		t.Errorf("Expected 2 read events to the sender, got %d", got)
	}
	if len(f.receipts.rows) != 2 {
		t.Errorf("Expected 2 receipts, got %d", len(f.receipts.rows))
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))
	ctx := context.Background()

	f.svc.MarkRead(ctx, 200, []int64{1})
	if err := f.svc.MarkRead(ctx, 200, []int64{1}); err != nil {
		t.Fatalf("Second MarkRead failed: %v", err)
	}

	if got := f.notifier.countTo(100, protocol.EventMessageRead); got != 1 {
		t.Errorf("Expected exactly 1 read event, got %d", got)
	}
	if len(f.receipts.rows) != 1 {
		t.Errorf("Expected exactly 1 receipt, got %d", len(f.receipts.rows))
	}
}

func TestMarkRead_SkipsOwnAndMissing(t *testing.T) {
	f := newFixture(direct(1, 200, 300, time.Now()))

	// reader is the sender of message 1; 999 does not exist
	if err := f.svc.MarkRead(context.Background(), 200, []int64{1, 999}); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if len(f.receipts.rows) != 0 {
		t.Errorf("Expected no receipts, got %d", len(f.receipts.rows))
	}
}

func TestMarkRead_WrongReceiver(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	err := f.svc.MarkRead(context.Background(), 300, []int64{1})
	if !apperrors.Is(err, apperrors.ErrNotReceiver) {
		t.Errorf("Expected ErrNotReceiver, got %v", err)
	}
}

// ============== Edit ==============

func TestEdit(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	evt, err := f.svc.Edit(context.Background(), 100, 1, "updated")
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	if evt.Content != "updated" {
		t.Errorf("Expected event content 'updated', got %q", evt.Content)
	}
	row := f.messages.rows[1]
	if row.Content != "updated" || !row.IsEdited {
		t.Errorf("Expected the row updated and flagged, got %+v", row)
	}
	if got := f.notifier.countTo(200, protocol.EventMessageEdited); got != 1 {
		t.Errorf("Expected 1 edited event to the receiver, got %d", got)
	}
	if got := f.notifier.countTo(100, protocol.EventMessageEdited); got != 1 {
		t.Errorf("Expected 1 edited ack to the sender, got %d", got)
	}
}

func TestEdit_PreservesDeliveryState(t *testing.T) {
	msg := direct(1, 100, 200, time.Now())
	msg.IsDelivered = true
	f := newFixture(msg)

	if _, err := f.svc.Edit(context.Background(), 100, 1, "updated"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !f.messages.rows[1].IsDelivered {
		t.Error("Expected editing to preserve the delivered flag")
	}
}

func TestEdit_NotSender(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	_, err := f.svc.Edit(context.Background(), 200, 1, "updated")
	if !apperrors.Is(err, apperrors.ErrNotSender) {
		t.Errorf("Expected ErrNotSender, got %v", err)
	}
}

func TestEdit_WindowClosed(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now().Add(-time.Hour)))

	_, err := f.svc.Edit(context.Background(), 100, 1, "updated")
	if !apperrors.Is(err, apperrors.ErrEditWindowClosed) {
		t.Errorf("Expected ErrEditWindowClosed, got %v", err)
	}
}

func TestEdit_Disabled(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))
	f.policy.snap.EditingEnabled = false

	_, err := f.svc.Edit(context.Background(), 100, 1, "updated")
	if !apperrors.Is(err, apperrors.ErrEditingDisabled) {
		t.Errorf("Expected ErrEditingDisabled, got %v", err)
	}
}

func TestEdit_DeletedMessage(t *testing.T) {
	msg := direct(1, 100, 200, time.Now())
	msg.IsDeleted = true
	f := newFixture(msg)

	_, err := f.svc.Edit(context.Background(), 100, 1, "updated")
	if !apperrors.Is(err, apperrors.ErrMessageNotFound) {
		t.Errorf("Expected ErrMessageNotFound, got %v", err)
	}
}

// ============== Delete ==============

func TestDelete_Tombstone(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	evt, err := f.svc.Delete(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if evt.Mode != "tombstone" {
		t.Errorf("Expected mode 'tombstone', got %q", evt.Mode)
	}
	row, ok := f.messages.rows[1]
	if !ok {
		t.Fatal("Expected the tombstoned row to survive")
	}
	if !row.IsDeleted || row.Content != "" {
		t.Errorf("Expected a cleared, flagged row, got %+v", row)
	}
	if len(f.attachments.softDeleted) != 1 {
		t.Errorf("Expected attachments soft-deleted, got %v", f.attachments.softDeleted)
	}
	if got := f.notifier.countTo(200, protocol.EventMessageDeleted); got != 1 {
		t.Errorf("Expected 1 deleted event to the receiver, got %d", got)
	}
}

func TestDelete_Hard(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))
	f.policy.snap.DeleteMode = model.DeleteModeHard

	evt, err := f.svc.Delete(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if evt.Mode != "hard" {
		t.Errorf("Expected mode 'hard', got %q", evt.Mode)
	}
	if evt.ReceiverId == nil || *evt.ReceiverId != 200 {
		t.Error("Expected the audience snapshot carried in the event")
	}
	if _, ok := f.messages.rows[1]; ok {
		t.Error("Expected the row removed")
	}
	if len(f.attachments.hardDeleted) != 1 {
		t.Errorf("Expected attachments hard-deleted, got %v", f.attachments.hardDeleted)
	}
	if got := f.notifier.countTo(200, protocol.EventMessageDeleted); got != 1 {
		t.Errorf("Expected 1 deleted event to the receiver, got %d", got)
	}
}

func TestDelete_NotSender(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	_, err := f.svc.Delete(context.Background(), 200, 1)
	if !apperrors.Is(err, apperrors.ErrNotSender) {
		t.Errorf("Expected ErrNotSender, got %v", err)
	}
}

func TestDelete_WindowClosed(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now().Add(-time.Hour)))

	_, err := f.svc.Delete(context.Background(), 100, 1)
	if !apperrors.Is(err, apperrors.ErrDeleteWindowClosed) {
		t.Errorf("Expected ErrDeleteWindowClosed, got %v", err)
	}
}

func TestDelete_Disabled(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))
	f.policy.snap.DeletingEnabled = false

	_, err := f.svc.Delete(context.Background(), 100, 1)
	if !apperrors.Is(err, apperrors.ErrDeletingDisabled) {
		t.Errorf("Expected ErrDeletingDisabled, got %v", err)
	}
}

func TestDelete_AlreadyDeleted(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))
	ctx := context.Background()

	if _, err := f.svc.Delete(ctx, 100, 1); err != nil {
		t.Fatalf("First Delete failed: %v", err)
	}
	_, err := f.svc.Delete(ctx, 100, 1)
	if !apperrors.Is(err, apperrors.ErrMessageNotFound) {
		t.Errorf("Expected ErrMessageNotFound on double delete, got %v", err)
	}
}

// ============== Forward ==============

func TestForward(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now().Add(-time.Hour)))

	created, err := f.svc.Forward(context.Background(), 200, []int64{1}, 300)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("Expected 1 created message, got %d", len(created))
	}

	fwd := created[0]
	if fwd.Id == 1 {
		t.Error("Expected a fresh id for the forwarded message")
	}
	if fwd.SenderId != 200 {
		t.Errorf("Expected the forwarder as sender, got %d", fwd.SenderId)
	}
	if fwd.Content != "hello" {
		t.Errorf("Expected the source content copied, got %q", fwd.Content)
	}
	if fwd.ForwardedFromMessageId == nil || *fwd.ForwardedFromMessageId != 1 {
		t.Error("Expected provenance to point at the source message")
	}
	if fwd.ForwardedFromUserId == nil || *fwd.ForwardedFromUserId != 100 {
		t.Error("Expected provenance to point at the original sender")
	}
	if fwd.IsDelivered {
		t.Error("Expected the forwarded message to start undelivered")
	}

	if len(f.attachments.copied) != 1 {
		t.Errorf("Expected attachments copied, got %v", f.attachments.copied)
	}
	if got := f.notifier.countTo(300, protocol.EventMessageReceived); got != 1 {
		t.Errorf("Expected 1 push to the receiver, got %d", got)
	}
	if got := f.notifier.countTo(200, protocol.EventMessageSentAck); got != 1 {
		t.Errorf("Expected 1 ack to the forwarder, got %d", got)
	}
}

func TestForward_SkipsMissingAndDeleted(t *testing.T) {
	deleted := direct(2, 100, 200, time.Now())
	deleted.IsDeleted = true
	f := newFixture(direct(1, 100, 200, time.Now()), deleted)

	created, err := f.svc.Forward(context.Background(), 200, []int64{1, 2, 999}, 300)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if len(created) != 1 {
		t.Errorf("Expected only the live source forwarded, got %d", len(created))
	}
}

func TestForward_Blocked(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))
	f.perms.err = apperrors.ErrBlocked

	_, err := f.svc.Forward(context.Background(), 200, []int64{1}, 300)
	if !apperrors.Is(err, apperrors.ErrBlocked) {
		t.Errorf("Expected ErrBlocked, got %v", err)
	}
}

func TestForward_InvalidParams(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Forward(context.Background(), 200, nil, 300); !apperrors.Is(err, apperrors.ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for empty sources, got %v", err)
	}
	if _, err := f.svc.Forward(context.Background(), 200, []int64{1}, 0); !apperrors.Is(err, apperrors.ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for missing receiver, got %v", err)
	}
}

// ============== AttachFile ==============

func TestAttachFile(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	err := f.svc.AttachFile(context.Background(), 100, &event.SendWithFileRequest{
		ReceiverId:   200,
		MessageId:    1,
		AttachmentId: 55,
	})
	if err != nil {
		t.Fatalf("AttachFile failed: %v", err)
	}

	if f.attachments.bound[55] != 1 {
		t.Error("Expected the attachment bound to the message")
	}
	if got := f.notifier.countTo(200, protocol.EventMessageReceived); got != 1 {
		t.Errorf("Expected 1 push to the receiver, got %d", got)
	}
}

func TestAttachFile_NotSender(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))

	err := f.svc.AttachFile(context.Background(), 200, &event.SendWithFileRequest{
		MessageId:    1,
		AttachmentId: 55,
	})
	if !apperrors.Is(err, apperrors.ErrNotSender) {
		t.Errorf("Expected ErrNotSender, got %v", err)
	}
}

func TestAttachFile_MissingAttachment(t *testing.T) {
	f := newFixture(direct(1, 100, 200, time.Now()))
	f.attachments.missing[55] = true

	err := f.svc.AttachFile(context.Background(), 100, &event.SendWithFileRequest{
		MessageId:    1,
		AttachmentId: 55,
	})
	if !apperrors.Is(err, apperrors.ErrAttachmentNotFound) {
		t.Errorf("Expected ErrAttachmentNotFound, got %v", err)
	}
}
