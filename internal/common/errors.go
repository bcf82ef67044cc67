package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error kinds carried in AppError.Code. The session switches on these.
const (
	KindFileTooLarge     = "FILE_TOO_LARGE"
	KindUnsupportedType  = "UNSUPPORTED_TYPE"
	KindMissingTotal     = "MISSING_TOTAL"
	KindNoServerResponse = "NO_SERVER_RESPONSE"
	KindEmptyExtraction  = "EMPTY_EXTRACTION"
	KindServiceError     = "SERVICE_ERROR"
	KindProcessingFailed = "PROCESSING_FAILED"
	KindHandoffFailed    = "HANDOFF_FAILED"
	KindInvalidState     = "INVALID_STATE"
)

// User-facing messages for kinds that have no server-provided text.
const (
	MsgNoServerResponse = "No se recibió respuesta del servidor"
	MsgProcessingFailed = "Error al procesar el documento"
	MsgEmptyExtraction  = "No se pudo extraer información del documento"
	MsgMissingTotal     = "El total es obligatorio"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrTransport    = errors.New("transport error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf returns the AppError code in err's chain, or "" when there is none.
func KindOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// MessageOf returns the user-facing message of an AppError, falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the status the persistence service answers with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupportedType:
		return http.StatusUnsupportedMediaType
	case KindMissingTotal:
		return http.StatusBadRequest
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
