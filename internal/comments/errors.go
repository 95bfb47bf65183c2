// Package comments creates and mutates comment chains: anchored
// drafts, replies, resolve/reopen state changes, and the propagation
// of existing chains across branch updates.
package comments

import "fmt"

// Error is a comment-domain failure with a stable code the API layer
// maps to a response. Codes:
//
//	EMPTY_COMMENT            comment or reply with no text
//	INVALID_ANCHOR           anchor names both or neither location kind
//	REPLY_ALREADY_DRAFTED    a draft reply by this user already exists
//	NOT_AN_ISSUE             resolve/reopen of a note
//	COMMENT_NOT_OPEN         resolve of a non-open issue
//	COMMENT_NOT_CLOSED       reopen of an issue that is not closed
//	REOPEN_ANCHOR_KNOWN      reopen anchor among the existing locations
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
