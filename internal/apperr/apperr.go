// Package apperr defines the error kinds that cross the service/HTTP
// boundary. Services return *Error values; the HTTP layer maps a Kind to a
// status code exactly once, in Status.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicateEmail
	KindDuplicate
	KindInvalidCredentials
	KindInvalidToken          // refresh token rejected (401)
	KindInvalidOrExpiredToken // reset token rejected (400)
	KindUnauthorized
	KindForbidden
	KindNotFound
)

var kindNames = map[Kind]string{
	KindInternal:              "internal",
	KindValidation:            "validation",
	KindDuplicateEmail:        "duplicate_email",
	KindDuplicate:             "duplicate",
	KindInvalidCredentials:    "invalid_credentials",
	KindInvalidToken:          "invalid_token",
	KindInvalidOrExpiredToken: "invalid_or_expired_token",
	KindUnauthorized:          "unauthorized",
	KindForbidden:             "forbidden",
	KindNotFound:              "not_found",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error is an expected failure with a client-safe Message. Err, when set,
// carries the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation builds a KindValidation error carrying field details.
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "Validation error", Fields: fields}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps a kind to its HTTP status code.
func Status(k Kind) int {
	switch k {
	case KindValidation, KindDuplicateEmail, KindDuplicate, KindInvalidOrExpiredToken:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindInvalidToken, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
