package errors

import (
	"errors"
	"fmt"
	"net/http"

	"stagecast/internal/core/domain"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeEntityNotFound       ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeStreamOffline        ErrorCode = "STREAM_OFFLINE"
	ErrCodeTokenNotEnough       ErrorCode = "TOKEN_NOT_ENOUGH"
	ErrCodeNotEnoughTierLimit   ErrorCode = "NOT_ENOUGH_TIER_LIMIT"
	ErrCodeParticipantJoinLimit ErrorCode = "PARTICIPANT_JOIN_LIMIT"
	ErrCodeStreamServerError    ErrorCode = "STREAM_SERVER_ERROR"
	ErrCodeBadRequest           ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit            ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors
func NewEntityNotFoundError(entity string) *AppError {
	return NewAppError(ErrCodeEntityNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func NewStreamOfflineError() *AppError {
	return NewAppError(ErrCodeStreamOffline, "stream is not live", http.StatusConflict)
}

func NewTokenNotEnoughError() *AppError {
	return NewAppError(ErrCodeTokenNotEnough, "insufficient token balance", http.StatusPaymentRequired)
}

func NewNotEnoughTierLimitError() *AppError {
	return NewAppError(ErrCodeNotEnoughTierLimit, "spend tier threshold not met", http.StatusForbidden)
}

func NewParticipantJoinLimitError() *AppError {
	return NewAppError(ErrCodeParticipantJoinLimit, "participant limit reached", http.StatusConflict)
}

func NewStreamServerError(cause error) *AppError {
	return WrapError(cause, ErrCodeStreamServerError, "media server provisioning failed", http.StatusBadGateway)
}

func NewBadRequestError(message string) *AppError {
	return NewAppError(ErrCodeBadRequest, message, http.StatusBadRequest)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// FromDomain maps domain sentinel errors to typed application errors.
// Unknown errors become internal errors so the taxonomy stays closed.
func FromDomain(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrStreamNotFound):
		return NewEntityNotFoundError("stream")
	case errors.Is(err, domain.ErrConversationNotFound):
		return NewEntityNotFoundError("conversation")
	case errors.Is(err, domain.ErrPerformerNotFound):
		return NewEntityNotFoundError("performer")
	case errors.Is(err, domain.ErrPeekInNotFound):
		return NewEntityNotFoundError("peek-in request")
	case errors.Is(err, domain.ErrForbidden):
		return NewForbiddenError("forbidden")
	case errors.Is(err, domain.ErrStreamOffline):
		return NewStreamOfflineError()
	case errors.Is(err, domain.ErrTokenNotEnough):
		return NewTokenNotEnoughError()
	case errors.Is(err, domain.ErrNotEnoughTierLimit):
		return NewNotEnoughTierLimitError()
	case errors.Is(err, domain.ErrParticipantJoinLimit):
		return NewParticipantJoinLimitError()
	case errors.Is(err, domain.ErrStreamServer):
		return NewStreamServerError(err)
	case errors.Is(err, domain.ErrBadRequest), errors.Is(err, domain.ErrRoleConflict):
		return NewBadRequestError(err.Error())
	default:
		return WrapError(err, ErrCodeInternal, "internal error", http.StatusInternalServerError)
	}
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
