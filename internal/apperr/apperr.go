// Package apperr defines the error taxonomy shared by the testimonial core and its transports.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not_found")
	ErrValidation   = errors.New("validation")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal")
)

const (
	CodeUnauthorized          = "unauthorized"
	CodeForbidden             = "forbidden"
	CodeNotFound              = "not_found"
	CodeInvalidStatus         = "invalid_status"
	CodeInvalidSlug           = "invalid_slug"
	CodeInvalidColor          = "invalid_color"
	CodeInvalidInput          = "invalid_input"
	CodeDomainNotAuthorized   = "domain_not_authorized"
	CodeFormInactive          = "form_inactive"
	CodeSubmissionLimit       = "submission_limit_reached"
	CodeProjectExists         = "project_exists"
	CodeSlugTaken             = "slug_taken"
	CodeSlugExhausted         = "slug_exhausted"
	CodeInternal              = "internal_error"
	CodeMediaStoreUnavailable = "media_unavailable"
	CodeFileUploadsDisabled   = "file_uploads_disabled"
	CodeFileTooLarge          = "file_too_large"
	CodeRateLimited           = "rate_limited"
)

// Error carries a machine readable code and unwraps to one of the taxonomy sentinels.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, code string, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

func Unauthorized(message string) *Error {
	return newError(ErrUnauthorized, CodeUnauthorized, message, nil)
}

func Forbidden(code string, message string) *Error {
	return newError(ErrForbidden, code, message, nil)
}

func NotFound(resource string) *Error {
	return newError(ErrNotFound, CodeNotFound, resource+" not found", nil)
}

func Validation(code string, message string) *Error {
	return newError(ErrValidation, code, message, nil)
}

func Conflict(code string, message string) *Error {
	return newError(ErrConflict, code, message, nil)
}

// Internal wraps a store or dependency failure. The cause is kept for logging only.
func Internal(cause error) *Error {
	return newError(ErrInternal, CodeInternal, "internal error", cause)
}

// Code returns the machine readable code of err, or the sentinel-derived default.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// HTTPStatus maps err to the status code used by owner-facing endpoints.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicStatus maps err for unauthenticated surfaces: forbidden and not found collapse to 404
// so a response never reveals that a private resource exists.
func PublicStatus(err error) int {
	status := HTTPStatus(err)
	if status == http.StatusForbidden {
		return http.StatusNotFound
	}
	return status
}
