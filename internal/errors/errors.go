// Package errors defines the typed failures of a question run.
//
// Every failure carries a Kind for programmatic handling and a human-readable
// Message that is safe to show in the UI. The wrapped error keeps the detail
// for logs.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// NoDataFound indicates the schema sample fetch failed or returned no rows.
	NoDataFound Kind = "no_data_found"
	// UpstreamCompletion indicates the completion service call failed.
	UpstreamCompletion Kind = "upstream_completion_error"
	// UnsupportedStatement indicates the generated text is not a SELECT.
	UnsupportedStatement Kind = "unsupported_statement"
	// FetchError indicates a row fetch against the backend failed.
	FetchError Kind = "fetch_error"
	// InvalidTarget indicates the connection target is incomplete or unusable.
	InvalidTarget Kind = "invalid_target"
)

// Messages shown for the fixed-text kinds.
const (
	MsgNoDataFound          = "No data found in table."
	MsgUnsupportedStatement = "Only SELECT queries are supported."
	MsgUnexpected           = "Unexpected error occurred."
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing text for err. Untyped errors fall back to
// their own text, or MsgUnexpected when empty.
func Message(err error) string {
	var e *E
	if stderrors.As(err, &e) {
		return e.Message
	}
	if err == nil || err.Error() == "" {
		return MsgUnexpected
	}
	return err.Error()
}
