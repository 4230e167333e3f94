// Package pionerr defines the error kinds shared across the pion packages.
package pionerr

import (
	"errors"
	"fmt"
)

// Kind identifies which subsystem raised an error.
type Kind int

const (
	KindParse Kind = iota
	KindIO
	KindProtocol
	KindAuth
	KindPlugin
	KindConfig
	KindReactor
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindIO:
		return "IoError"
	case KindProtocol:
		return "ProtocolError"
	case KindAuth:
		return "AuthError"
	case KindPlugin:
		return "PluginError"
	case KindConfig:
		return "ConfigError"
	case KindReactor:
		return "ReactorError"
	case KindStorage:
		return "StorageError"
	default:
		return "UnknownError"
	}
}

// Error wraps an underlying cause with a Kind and a sub-kind tag
// (e.g. "malformed first line", "oversize", "not found").
type Error struct {
	Kind Kind
	Sub  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s(%s): %v", e.Kind, e.Sub, e.Err)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.Sub)
}

func (e *Error) Unwrap() error { return e.Err }

func New(k Kind, sub string, cause error) *Error {
	return &Error{Kind: k, Sub: sub, Err: cause}
}

// Is lets errors.Is match against an *Error target: a target with an
// empty Sub (e.g. pionerr.ParseError("", nil)) matches on Kind alone,
// otherwise both Kind and Sub must match.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Sub == "" {
		return te.Kind == e.Kind
	}
	return te.Kind == e.Kind && te.Sub == e.Sub
}

// Sentinels for common sub-kinds, used with errors.Is(err, pionerr.ErrIncomplete) etc.
var (
	ErrIncomplete = &Error{Kind: KindParse, Sub: "incomplete"}
)

// ParseError constructs a ParseError of the given sub-kind.
func ParseError(sub string, cause error) *Error { return New(KindParse, sub, cause) }

// IOError constructs an IoError of the given sub-kind.
func IOError(sub string, cause error) *Error { return New(KindIO, sub, cause) }

// ProtocolError constructs a ProtocolError of the given sub-kind.
func ProtocolError(sub string, cause error) *Error { return New(KindProtocol, sub, cause) }

// AuthError constructs an AuthError of the given sub-kind.
func AuthError(sub string, cause error) *Error { return New(KindAuth, sub, cause) }

// PluginError constructs a PluginError of the given sub-kind.
func PluginError(sub string, cause error) *Error { return New(KindPlugin, sub, cause) }

// ConfigError constructs a ConfigError of the given sub-kind.
func ConfigError(sub string, cause error) *Error { return New(KindConfig, sub, cause) }

// ReactorError constructs a ReactorError of the given sub-kind.
func ReactorError(sub string, cause error) *Error { return New(KindReactor, sub, cause) }

// StorageError constructs a StorageError of the given sub-kind.
func StorageError(sub string, cause error) *Error { return New(KindStorage, sub, cause) }

// IsErrIncomplete reports whether err signals "need more bytes", the
// Continue outcome parsers use in place of a sentinel the caller must
// compare by pointer.
func IsErrIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}
