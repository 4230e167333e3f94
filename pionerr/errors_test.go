package pionerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsErrIncomplete(t *testing.T) {
	if !IsErrIncomplete(ErrIncomplete) {
		t.Error("ErrIncomplete should report itself as incomplete")
	}
	wrapped := fmt.Errorf("context: %w", ErrIncomplete)
	if !IsErrIncomplete(wrapped) {
		t.Error("a wrapped ErrIncomplete should still report incomplete")
	}
	if IsErrIncomplete(ParseError("bad header", nil)) {
		t.Error("an unrelated ParseError should not report incomplete")
	}
}

func TestErrorIsKindOnly(t *testing.T) {
	err := PluginError("not found", errors.New("boom"))
	if !errors.Is(err, PluginError("", nil)) {
		t.Error("expected Kind-only match to succeed")
	}
	if errors.Is(err, ConfigError("", nil)) {
		t.Error("expected mismatched Kind to fail")
	}
}

func TestErrorIsKindAndSub(t *testing.T) {
	err := ParseError("oversize", nil)
	if !errors.Is(err, ParseError("oversize", nil)) {
		t.Error("expected matching Kind+Sub to succeed")
	}
	if errors.Is(err, ParseError("bad header", nil)) {
		t.Error("expected mismatched Sub to fail")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := IOError("read", cause)
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the wrapped cause")
	}
}
