package service_test

import (
	"context"
	"testing"
	"time"

	"clinicaja/internal/dto"
	"clinicaja/internal/model"
	"clinicaja/internal/repository/repotest"
	"clinicaja/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistorial(t *testing.T) (*repotest.Store, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := repotest.NewStore()
	ana, beto := uuid.New(), uuid.New()
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	filas := []struct {
		operador uuid.UUID
		estado   string
		dia      int
	}{
		{ana, model.EstadoCerrado, 0},
		{ana, model.EstadoAnulado, 1},
		{beto, model.EstadoCerrado, 2},
		{ana, model.EstadoCerrado, 3},
		{beto, model.EstadoAbierto, 4},
	}
	for i, f := range filas {
		store.Seed(model.TurnoCaja{
			Numero:     service.FormatearNumero(2025, i+1),
			OperadorID: f.operador,
			Estado:     f.estado,
			OpenedAt:   base.AddDate(0, 0, f.dia),
		})
	}
	return store, ana, beto
}

func TestHistorial_Listar_OrdenYPaginacion(t *testing.T) {
	store, _, _ := seedHistorial(t)
	svc := service.NewHistorialService(store.Turnos(), 0)

	resp, err := svc.Listar(context.Background(), dto.TurnoFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "SHIFT-2025-00005", resp.Items[0].Numero)
	assert.Equal(t, "SHIFT-2025-00004", resp.Items[1].Numero)
	assert.Equal(t, dto.PaginationResponse{Page: 1, PageSize: 2, Total: 5, TotalPages: 3}, resp.Pagination)

	resp, err = svc.Listar(context.Background(), dto.TurnoFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "SHIFT-2025-00001", resp.Items[0].Numero)

	resp, err = svc.Listar(context.Background(), dto.TurnoFilter{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.NotNil(t, resp.Items)
	assert.Equal(t, int64(5), resp.Pagination.Total)
}

func TestHistorial_Listar_Filtros(t *testing.T) {
	store, ana, beto := seedHistorial(t)
	svc := service.NewHistorialService(store.Turnos(), 0)

	resp, err := svc.Listar(context.Background(), dto.TurnoFilter{OperadorID: &ana, Estado: "closed", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	for _, it := range resp.Items {
		assert.Equal(t, ana.String(), it.OperadorID)
		assert.Equal(t, model.EstadoCerrado, it.Estado)
	}

	desde := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	hasta := time.Date(2025, 5, 4, 8, 0, 0, 0, time.UTC)
	resp, err = svc.Listar(context.Background(), dto.TurnoFilter{Desde: &desde, Hasta: &hasta, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "SHIFT-2025-00003", resp.Items[0].Numero)
	assert.Equal(t, "SHIFT-2025-00002", resp.Items[1].Numero)

	resp, err = svc.Listar(context.Background(), dto.TurnoFilter{OperadorID: &beto, Estado: model.EstadoAbierto, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "SHIFT-2025-00005", resp.Items[0].Numero)
}

func TestHistorial_Listar_Validacion(t *testing.T) {
	store, _, _ := seedHistorial(t)
	svc := service.NewHistorialService(store.Turnos(), 50)
	desde := time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)
	hasta := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	cases := map[string]dto.TurnoFilter{
		"page cero":          {Page: 0, PageSize: 10},
		"page_size cero":     {Page: 1, PageSize: 0},
		"page_size excedido": {Page: 1, PageSize: 51},
		"estado desconocido": {Page: 1, PageSize: 10, Estado: "PAUSED"},
		"rango invertido":    {Page: 1, PageSize: 10, Desde: &desde, Hasta: &hasta},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Listar(context.Background(), f)
			assert.ErrorIs(t, err, model.ErrValidacion)
		})
	}
}
