package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(UnsupportedStatement, MsgUnsupportedStatement)
	wrapped := fmt.Errorf("validate: %w", base)

	if got := KindOf(wrapped); got != UnsupportedStatement {
		t.Fatalf("KindOf() = %q", got)
	}
	if !Is(wrapped, UnsupportedStatement) {
		t.Fatal("expected Is() to match")
	}
	if Is(wrapped, FetchError) {
		t.Fatal("unexpected FetchError match")
	}
	if got := Message(wrapped); got != MsgUnsupportedStatement {
		t.Fatalf("Message() = %q", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(FetchError, "fetch failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if got := err.Error(); got != "fetch_error: fetch failed: connection refused" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestMessageForUntypedErrors(t *testing.T) {
	if got := Message(stderrors.New("boom")); got != "boom" {
		t.Fatalf("Message() = %q", got)
	}
	if got := Message(nil); got != MsgUnexpected {
		t.Fatalf("Message(nil) = %q", got)
	}
}
