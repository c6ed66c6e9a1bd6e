package errs

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers. Internal detail stays in the
// wrapped error chain and in logs.
const (
	CodeConfiguration       = "CONFIGURATION_ERROR"
	CodeDecryption          = "DECRYPTION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodePriceUnavailable    = "PRICE_UNAVAILABLE"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeExternalService     = "EXTERNAL_SERVICE_ERROR"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
)

type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the stable code of err, or "" if err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

func NotFound(what string) *Error {
	return Newf(CodeNotFound, "%s not found", what)
}

func External(what string, err error) *Error {
	return Wrap(CodeExternalService, what, err)
}
