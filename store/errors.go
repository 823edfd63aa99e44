package store

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so the transport can pick a status code
// without knowing every SQS error code.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyExists
	KindConflict
	KindInvalidArgument
	KindInvalidReceiptHandle
	KindLimitExceeded
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindConflict:
		return "Conflict"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindInvalidReceiptHandle:
		return "InvalidReceiptHandle"
	case KindLimitExceeded:
		return "LimitExceeded"
	default:
		return "Internal"
	}
}

// Error is the classified error returned by every Store operation.
// Code is the SQS error code written on the wire as "__type".
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same SQS error code, so that
// errors.Is(err, ErrQueueDoesNotExist) matches any message text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrQueueDoesNotExist is returned when trying to operate on a queue that does not exist.
	ErrQueueDoesNotExist = &Error{Kind: KindNotFound, Code: "QueueDoesNotExist", Message: "The specified queue does not exist."}
	// ErrQueueNameExists is returned when a queue with the same name but different attributes already exists.
	ErrQueueNameExists = &Error{Kind: KindAlreadyExists, Code: "QueueNameExists", Message: "A queue already exists with the same name and a different value for attribute(s)."}
	// ErrPurgeQueueInProgress is returned when a purge request is made for a queue that has been purged within the cooldown.
	ErrPurgeQueueInProgress = &Error{Kind: KindConflict, Code: "PurgeQueueInProgress", Message: "Only one PurgeQueue operation on a queue is allowed every 60 seconds."}
	// ErrInvalidReceiptHandle is returned when a receipt handle is unknown, stale or expired.
	ErrInvalidReceiptHandle = &Error{Kind: KindInvalidReceiptHandle, Code: "ReceiptHandleIsInvalid", Message: "The specified receipt handle isn't valid."}
	// ErrInvalidParameterValue is the generic validation failure.
	ErrInvalidParameterValue = &Error{Kind: KindInvalidArgument, Code: "InvalidParameterValue", Message: "An invalid or out-of-range value was supplied for the input parameter."}
	// ErrInvalidAttributeName is returned for unknown queue attribute names.
	ErrInvalidAttributeName = &Error{Kind: KindInvalidArgument, Code: "InvalidAttributeName", Message: "The specified attribute doesn't exist."}
	// ErrMissingParameter is returned when a required parameter is absent.
	ErrMissingParameter = &Error{Kind: KindInvalidArgument, Code: "MissingParameter", Message: "A required parameter for the specified action is not supplied."}
	// ErrInvalidMessageContents is returned when a message body contains characters outside the allowed set.
	ErrInvalidMessageContents = &Error{Kind: KindInvalidArgument, Code: "InvalidMessageContents", Message: "The message contains characters outside the allowed set."}

	// Batch validation errors.
	ErrEmptyBatchRequest        = &Error{Kind: KindInvalidArgument, Code: "EmptyBatchRequest", Message: "The batch request doesn't contain any entries."}
	ErrTooManyEntriesInBatch    = &Error{Kind: KindLimitExceeded, Code: "TooManyEntriesInBatchRequest", Message: "The batch request contains more entries than permissible."}
	ErrBatchEntryIdsNotDistinct = &Error{Kind: KindInvalidArgument, Code: "BatchEntryIdsNotDistinct", Message: "Two or more batch entries in the request have the same Id."}
	ErrInvalidBatchEntryId      = &Error{Kind: KindInvalidArgument, Code: "InvalidBatchEntryId", Message: "The Id of a batch entry in a batch request doesn't abide by the specification."}
	ErrBatchRequestTooLong      = &Error{Kind: KindLimitExceeded, Code: "BatchRequestTooLong", Message: "The length of all the messages put together is more than the limit."}

	// Message move task errors.
	ErrResourceNotFound       = &Error{Kind: KindNotFound, Code: "ResourceNotFoundException", Message: "One or more specified resources don't exist."}
	ErrMoveTaskAlreadyRunning = &Error{Kind: KindConflict, Code: "MessageMoveTaskAlreadyRunning", Message: "A message move task is already running on the source queue."}
	ErrFailedPrecondition     = &Error{Kind: KindConflict, Code: "FailedPrecondition", Message: "The message move task is not running."}
)

// invalidParameter builds an InvalidParameterValue error with a specific message.
func invalidParameter(format string, args ...any) *Error {
	return newError(KindInvalidArgument, ErrInvalidParameterValue.Code, format, args...)
}

func missingParameter(name string) *Error {
	return newError(KindInvalidArgument, ErrMissingParameter.Code, "The request must contain the parameter %s.", name)
}

func invalidAttributeName(name string) *Error {
	return newError(KindInvalidArgument, ErrInvalidAttributeName.Code, "Unknown Attribute %s.", name)
}
