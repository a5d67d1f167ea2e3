package common

import (
	"errors"
	"net/http"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// Kind discriminates request failures. Handlers branch on the kind, never on
// error strings or driver error types.
type Kind int

const (
	KindValidation Kind = iota
	KindUnauthorized
	KindNotFound
	KindConflict
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindUnauthorized:
		return "UnauthorizedError"
	case KindNotFound:
		return "NotFoundError"
	case KindConflict:
		return "ConflictError"
	}
	return "InternalError"
}

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error is a kind-tagged request error. Message is client-safe; Err is the
// wrapped internal cause and is logged, never serialized.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a tagged error with a client-safe message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapE tags an internal cause with a kind and a client-safe message.
func WrapE(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: pkgerrors.WithStack(err)}
}

// KindOf extracts the kind from err, defaulting to KindInternal for anything
// untagged so raw storage errors never pick a 4xx status by accident.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromDB translates a storage error into the taxonomy. gorm's not-found
// sentinel becomes NotFoundError; everything else is wrapped as internal with
// the given client-safe message.
func FromDB(err error, notFoundMsg, internalMsg string) *Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return E(KindNotFound, notFoundMsg)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return WrapE(KindConflict, "resource already exists", err)
	}
	return WrapE(KindInternal, internalMsg, err)
}
