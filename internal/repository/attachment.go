package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/errors"
)

// AttachmentRepository manages attachment rows. Upload and file storage are
// owned by the excluded upload flow; the engine binds, copies and deletes
// metadata only.
type AttachmentRepository struct {
	db *pgxpool.Pool
}

// NewAttachmentRepository creates an attachment repository.
func NewAttachmentRepository(db *pgxpool.Pool) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// BindToMessage attaches a pre-created attachment row to a message. Returns
// false when the attachment does not exist or is already bound elsewhere.
func (r *AttachmentRepository) BindToMessage(ctx context.Context, attachmentId, messageId int64) (bool, error) {
	query := `
		UPDATE attachments SET message_id = $2
		WHERE id = $1 AND (message_id IS NULL OR message_id = $2) AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, attachmentId, messageId)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// CopyToMessage duplicates the live attachment rows of one message onto
// another. Forwarded messages own fresh rows, never shared references.
func (r *AttachmentRepository) CopyToMessage(ctx context.Context, srcMessageId, dstMessageId int64, at time.Time) error {
	query := `
		INSERT INTO attachments (message_id, file_name, file_path, mime_type, size_bytes, created_at)
		SELECT $2, file_name, file_path, mime_type, size_bytes, $3
		FROM attachments
		WHERE message_id = $1 AND is_deleted = FALSE
	`

	_, err := r.db.Exec(ctx, query, srcMessageId, dstMessageId, at)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// MarkDeletedByMessage soft-deletes a message's attachments (tombstone mode).
func (r *AttachmentRepository) MarkDeletedByMessage(ctx context.Context, messageId int64, at time.Time) error {
	query := `
		UPDATE attachments SET is_deleted = TRUE, deleted_at = $2
		WHERE message_id = $1 AND is_deleted = FALSE
	`

	_, err := r.db.Exec(ctx, query, messageId, at)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// DeleteByMessage removes a message's attachment rows (hard-delete mode).
func (r *AttachmentRepository) DeleteByMessage(ctx context.Context, messageId int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM attachments WHERE message_id = $1`, messageId)
	if err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}
