package errs

import (
	"errors"
	"fmt"
)

// Kind classifies failures so outer layers can decide how to report them.
type Kind string

const (
	KindUnknown Kind = ""
	// KindConnection: the backing store cannot be opened.
	KindConnection Kind = "connection"
	// KindSchema: the stored header does not match the expected one.
	KindSchema Kind = "schema"
	// KindUpload: an attachment backend rejected or timed out an upload.
	KindUpload Kind = "upload"
	// KindValidation: caller input is incomplete; nothing was written.
	KindValidation Kind = "validation"
	// KindStore: read/write against the backing store failed.
	KindStore Kind = "store"
	// KindConflict: the stored content changed since it was loaded.
	KindConflict Kind = "conflict"
)

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E attaches kind and op to err. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds a new kinded error from a message.
func Ef(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the outermost kind found in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether any error in the chain carries kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
