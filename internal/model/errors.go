package model

import "errors"

// Business-rule errors. Callers wrap them with context using %w and test with
// errors.Is. Anything that is not one of these is a storage/transport failure.
var (
	// ErrValidacion: malformed input (non-positive amount, bad pagination).
	ErrValidacion = errors.New("validation error")
	// ErrNoEncontrado: the referenced shift does not exist.
	ErrNoEncontrado = errors.New("not found")
	// ErrEstadoInvalido: operation not legal for the shift's current state.
	ErrEstadoInvalido = errors.New("invalid state")
	// ErrConflicto: violates a cross-record invariant.
	ErrConflicto = errors.New("conflict")
)
