package router

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Drain once the router no longer accepts events.
var ErrStopped = errors.New("router stopped")

// DispatchError reports an event the Run loop could not fully process.
// The loop logs it and continues.
type DispatchError struct {
	Code DispatchErrorCode
	Kind Kind
	Seq  int64
	Err  error
}

// DispatchErrorCode categorizes dispatch failures.
type DispatchErrorCode string

const (
	// ErrCodeMissingPayload indicates an event without the data its kind needs.
	ErrCodeMissingPayload DispatchErrorCode = "MISSING_PAYLOAD"

	// ErrCodeUnknownKind indicates an event kind the loop does not handle.
	ErrCodeUnknownKind DispatchErrorCode = "UNKNOWN_KIND"

	// ErrCodeJournal indicates the journal write failed. The correlator
	// has already applied the event.
	ErrCodeJournal DispatchErrorCode = "JOURNAL_WRITE"
)

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s event seq=%d: %v", e.Code, e.Kind, e.Seq, e.Err)
	}
	return fmt.Sprintf("%s: %s event seq=%d", e.Code, e.Kind, e.Seq)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// IsJournalError reports whether err is a failed journal write.
// Uses errors.As to handle wrapped errors.
func IsJournalError(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeJournal
	}
	return false
}
