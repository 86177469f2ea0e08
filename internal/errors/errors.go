package errors

import (
	"errors"
	"fmt"
)

// AppError carries a stable error code next to a user-visible message.
// The code decides how the protocol layer reports the failure to the client.
type AppError struct {
	Code    int    // stable error code
	Message string // user-visible message
	Err     error  // wrapped cause, optional
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap supports errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError creates a new error value.
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap attaches a cause to a predefined error.
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is reports whether err carries the same code as target.
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode returns the error code, or the generic server code for foreign errors.
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage returns the user-visible message.
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// ============== error codes ==============

const (
	CodeSuccess = 0

	// authorization 40000-40999
	CodeUnauthenticated = 40001
	CodeNotSender       = 40002
	CodeNotReceiver     = 40003
	CodeNotMember       = 40004
	CodeBlocked         = 40005

	// policy window 41000-41999
	CodeEditWindowClosed   = 41001
	CodeDeleteWindowClosed = 41002
	CodeEditingDisabled    = 41003
	CodeDeletingDisabled   = 41004

	// not found 44000-44999
	CodeMessageNotFound    = 44001
	CodeUserNotFound       = 44002
	CodeAttachmentNotFound = 44003

	// validation 45000-45999
	CodeInvalidParams = 45001
	CodeEmptyContent  = 45002

	// system 50000-50999
	CodeServerError = 50001
	CodeDBError     = 50002
)

// ============== predefined errors ==============

// authorization
var (
	ErrUnauthenticated = NewError(CodeUnauthenticated, "connection is not authenticated")
	ErrNotSender       = NewError(CodeNotSender, "only the original sender may do this")
	ErrNotReceiver     = NewError(CodeNotReceiver, "only the receiver may confirm delivery")
	ErrNotMember       = NewError(CodeNotMember, "sender is not a member of the destination")
	ErrBlocked         = NewError(CodeBlocked, "sender is blocked by the receiver")
)

// policy window
var (
	ErrEditWindowClosed   = NewError(CodeEditWindowClosed, "edit window has closed")
	ErrDeleteWindowClosed = NewError(CodeDeleteWindowClosed, "delete window has closed")
	ErrEditingDisabled    = NewError(CodeEditingDisabled, "message editing is disabled")
	ErrDeletingDisabled   = NewError(CodeDeletingDisabled, "message deletion is disabled")
)

// not found / validation
var (
	ErrMessageNotFound    = NewError(CodeMessageNotFound, "message does not exist")
	ErrUserNotFound       = NewError(CodeUserNotFound, "user does not exist")
	ErrAttachmentNotFound = NewError(CodeAttachmentNotFound, "attachment does not exist")
	ErrInvalidParams      = NewError(CodeInvalidParams, "invalid parameters")
	ErrEmptyContent       = NewError(CodeEmptyContent, "message content is empty")
)

// system
var (
	ErrServerError = NewError(CodeServerError, "internal server error")
	ErrDBError     = NewError(CodeDBError, "database error")
)
