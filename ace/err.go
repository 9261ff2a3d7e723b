package ace

import (
	"fmt"
)

// AceErr carries a message for the caller plus an optional wrapped cause.
//
// Use NewErrf(...) or WrapErrf(...) to instantiate.
type AceErr struct {
	Msg   string
	Cause error
}

func (e *AceErr) Error() string {
	if e.Cause != nil {
		return e.Msg + ", " + e.Cause.Error()
	}
	return e.Msg
}

func (e *AceErr) Unwrap() error {
	return e.Cause
}

// Create new AceErr with formatted message.
func NewErrf(msg string, args ...any) *AceErr {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &AceErr{Msg: msg}
}

// Wrap err with formatted message, the cause remains reachable through errors.Is / errors.As.
func WrapErrf(err error, msg string, args ...any) *AceErr {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &AceErr{Msg: msg, Cause: err}
}
