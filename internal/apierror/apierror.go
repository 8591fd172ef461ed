// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"net/http"

	"clinicaja/internal/model"
)

// Machine-readable error codes carried in every envelope.
const (
	CodeValidacion     = "validacion"
	CodeNoEncontrado   = "no_encontrado"
	CodeEstadoInvalido = "estado_invalido"
	CodeConflicto      = "conflicto"
	CodeNoDisponible   = "no_disponible"
	CodeInterno        = "interno"
	CodeNoAutenticado  = "no_autenticado"
	CodeSinPermisos    = "sin_permisos"
	CodeLimiteExcedido = "limite_excedido"
	CodeJSONInvalido   = "json_invalido"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func New(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeValidacion, Detail: "Error de validacion", Fields: fields}
}

// FromError maps a service error onto its HTTP status and envelope. Domain
// errors keep their message; anything unclassified becomes an opaque 500.
func FromError(err error) (int, *APIError) {
	switch {
	case errors.Is(err, model.ErrValidacion):
		return http.StatusUnprocessableEntity, New(CodeValidacion, err.Error())
	case errors.Is(err, model.ErrNoEncontrado):
		return http.StatusNotFound, New(CodeNoEncontrado, err.Error())
	case errors.Is(err, model.ErrEstadoInvalido):
		return http.StatusConflict, New(CodeEstadoInvalido, err.Error())
	case errors.Is(err, model.ErrConflicto):
		return http.StatusConflict, New(CodeConflicto, err.Error())
	case transitorio(err):
		return http.StatusServiceUnavailable, New(CodeNoDisponible, "Servicio temporalmente no disponible, reintente")
	default:
		return http.StatusInternalServerError, New(CodeInterno, "Error interno del servidor")
	}
}

func transitorio(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
