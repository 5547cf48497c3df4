package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures crossing the service boundary.
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION_ERROR"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindInvalidStatus ErrorKind = "INVALID_STATUS"
	KindAlreadyPaid   ErrorKind = "ALREADY_PAID"
	KindNoEmail       ErrorKind = "NO_EMAIL"
	KindForbidden     ErrorKind = "FORBIDDEN"
	KindUploadError   ErrorKind = "UPLOAD_ERROR"
	KindSendFailed    ErrorKind = "SEND_FAILED"
	KindServerError   ErrorKind = "SERVER_ERROR"
)

// DomainError carries a taxonomy kind and a caller-safe message. Internal
// detail stays in the wrapped cause and never crosses the boundary.
type DomainError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.cause }

// NewError builds a DomainError without a cause.
func NewError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// WrapError attaches a cause to a DomainError.
func WrapError(kind ErrorKind, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Message: message, cause: cause}
}

// Validationf builds a VALIDATION_ERROR with a formatted message.
func Validationf(format string, args ...any) *DomainError {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds the standard NOT_FOUND error. Absent and soft-deleted
// entities are deliberately indistinguishable to ordinary callers.
func NotFound(entity string) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: entity + " not found"}
}

// KindOf extracts the taxonomy kind from err, defaulting to SERVER_ERROR.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindServerError
}

// UserSafeMessage returns the message callers may see. Unclassified errors
// collapse to a generic message so internals never leak.
func UserSafeMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
