package transaction

import "fmt"

// TransactionError reports an internal invariant violated during
// commit: a Verify mismatch, a conflicting review event, a finalizer
// cycle. It always aborts the transaction.
type TransactionError struct {
	Code    string
	Message string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction error [%s]: %s", e.Code, e.Message)
}

func Errorf(code, format string, args ...any) *TransactionError {
	return &TransactionError{Code: code, Message: fmt.Sprintf(format, args...)}
}
