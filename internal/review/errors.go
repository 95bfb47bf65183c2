// Package review derives review state: per-user tags, acceptance, the
// reviewed-flag aggregate, draft submission and discard, the review
// lifecycle FSM, and rebase bookkeeping.
package review

import "fmt"

// Error is a review-domain failure with a stable code the API layer
// maps to a response. Codes:
//
//	INVALID_STATE_TRANSITION   FSM rejects the requested state
//	REBASE_ALREADY_PENDING     a pending rebase already exists
//	REBASE_NOT_PENDING         finalize/cancel of a non-pending rebase
//	COMMENT_STATE_MISMATCH     draft state change raced a publication
//	REVIEWED_STATE_MISMATCH    draft reviewed flag raced a publication
//	PUBLISHED_COMMENT_EDIT     attempt to edit a published comment
//	NOT_ASSIGNED               reviewed-state change without assignment
//	PARTITION_MULTIPLE_HEADS   commit partition has more than one head
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
