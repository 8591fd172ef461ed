package apierror_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"clinicaja/internal/apierror"
	"clinicaja/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validacion", fmt.Errorf("monto: %w", model.ErrValidacion), http.StatusUnprocessableEntity, apierror.CodeValidacion},
		{"no encontrado", fmt.Errorf("turno x: %w", model.ErrNoEncontrado), http.StatusNotFound, apierror.CodeNoEncontrado},
		{"estado invalido", fmt.Errorf("cerrado: %w", model.ErrEstadoInvalido), http.StatusConflict, apierror.CodeEstadoInvalido},
		{"conflicto", fmt.Errorf("abierto: %w", model.ErrConflicto), http.StatusConflict, apierror.CodeConflicto},
		{"timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, apierror.CodeNoDisponible},
		{"red", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, http.StatusServiceUnavailable, apierror.CodeNoDisponible},
		{"otro", errors.New("boom"), http.StatusInternalServerError, apierror.CodeInterno},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := apierror.FromError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestFromError_NoFiltraDetallesInternos(t *testing.T) {
	_, body := apierror.FromError(errors.New("pq: password authentication failed for user clinicaja"))
	assert.NotContains(t, body.Detail, "password")
}
