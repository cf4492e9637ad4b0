// Package apperr carries the HTTP status and the Arabic user-facing message
// of domain errors, so handlers can answer without knowing every sentinel.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a sentinel domain error.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return New(http.StatusNotFound, code, message)
}

func BadRequest(code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

func Conflict(code, message string) *Error {
	return New(http.StatusConflict, code, message)
}

var (
	ErrInternal     = New(http.StatusInternalServerError, "INTERNAL", "حدث خطأ غير متوقع، يرجى المحاولة لاحقاً")
	ErrBadInput     = BadRequest("BAD_INPUT", "البيانات المدخلة غير صحيحة")
	ErrUnauthorized = New(http.StatusUnauthorized, "UNAUTHORIZED", "يجب تسجيل الدخول")
	ErrForbidden    = New(http.StatusForbidden, "FORBIDDEN", "ليس لديك صلاحية")
)

// From returns the domain error wrapped in err, or ErrInternal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}

// Status is the HTTP status for err.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}
