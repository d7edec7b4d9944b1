package models

import (
	"errors"
	"fmt"
)

// Errores de dominio. Los servicios los envuelven con fmt.Errorf("...: %w")
// y los handlers los traducen a códigos HTTP con errors.Is.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("conflict")
	ErrRenderFailure = errors.New("render failure")
	ErrTransport     = errors.New("transport failure")
)

// ErrorCode representa el código de error
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodeConflict       ErrorCode = "CONFLICT"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorCodeUnavailable    ErrorCode = "UNAVAILABLE"
	ErrorCodeInternal       ErrorCode = "INTERNAL"
)

// ErrorDetail representa un detalle específico del error
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ErrorResponse es el cuerpo de toda respuesta de error. El cliente muestra
// Message tal cual al usuario.
type ErrorResponse struct {
	Message string        `json:"message"`
	Code    string        `json:"code,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// Error implementa la interfaz error
func (e ErrorResponse) Error() string {
	return e.Message
}

// NewErrorResponse crea una nueva respuesta de error
func NewErrorResponse(code ErrorCode, message string) ErrorResponse {
	return ErrorResponse{Code: string(code), Message: message}
}

// NewValidationError crea un error de validación con detalles
func NewValidationError(message string, details []ErrorDetail) ErrorResponse {
	return ErrorResponse{
		Code:    string(ErrorCodeInvalidRequest),
		Message: message,
		Details: details,
	}
}

// NewConflictError crea un error de conflicto
func NewConflictError(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeConflict, message)
}

// NewUnauthorizedError crea un error de autenticación
func NewUnauthorizedError(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeUnauthorized, message)
}

// NewForbiddenError crea un error de permisos
func NewForbiddenError(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeForbidden, message)
}

// NewNotFoundError crea un error de recurso no encontrado
func NewNotFoundError(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeNotFound, message)
}

// NewRateLimitedError crea un error de rate limiting
func NewRateLimitedError(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeRateLimited, message)
}

// NewUnavailableError indica que una integración opcional no está configurada
func NewUnavailableError(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeUnavailable, message)
}

// NewInternalError crea un error interno del servidor
func NewInternalError(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeInternal, message)
}

// ValidationError lleva los detalles por campo y se compara igual a ErrValidation
type ValidationError struct {
	Details []ErrorDetail
}

// Error implementa la interfaz error
func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Details[0].Field, e.Details[0].Issue)
}

// Is permite errors.Is(err, ErrValidation)
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
