package service_test

import (
	"context"
	"testing"

	"clinicaja/internal/model"
	"clinicaja/internal/repository/repotest"
	"clinicaja/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pago(monto string, metodo model.MetodoPago) model.PagoTurno {
	return model.PagoTurno{ID: uuid.New(), Monto: decimal.RequireFromString(monto), Metodo: metodo}
}

func TestCalcularTotales_SinPagos(t *testing.T) {
	tot := service.CalcularTotales(nil)

	assert.Equal(t, 0, tot.Cantidad)
	assert.True(t, tot.Total.IsZero())
	require.Len(t, tot.PorMetodo, len(model.MetodosPago))
	for _, m := range model.MetodosPago {
		assert.True(t, tot.PorMetodo[m].IsZero(), "bucket %s", m)
	}
}

func TestCalcularTotales_AgrupaPorMetodo(t *testing.T) {
	pagos := []model.PagoTurno{
		pago("50.00", model.MetodoEfectivo),
		pago("30.25", model.MetodoTarjeta),
		pago("20.00", model.MetodoEfectivo),
		pago("12.50", model.MetodoTransferencia),
		pago("99.99", model.MetodoSeguro),
		pago("7.00", model.MetodoOtro),
	}

	tot := service.CalcularTotales(pagos)

	assert.Equal(t, 6, tot.Cantidad)
	assert.Equal(t, "219.74", tot.Total.StringFixed(2))
	assert.Equal(t, "70.00", tot.Efectivo().StringFixed(2))
	assert.Equal(t, "30.25", tot.PorMetodo[model.MetodoTarjeta].StringFixed(2))
	assert.Equal(t, "12.50", tot.PorMetodo[model.MetodoTransferencia].StringFixed(2))
	assert.Equal(t, "99.99", tot.PorMetodo[model.MetodoSeguro].StringFixed(2))
	assert.Equal(t, "7.00", tot.PorMetodo[model.MetodoOtro].StringFixed(2))
}

func TestCalcularTotales_SumaDeBucketsIgualAlTotal(t *testing.T) {
	pagos := []model.PagoTurno{
		pago("10.10", model.MetodoEfectivo),
		pago("0.20", model.MetodoTarjeta),
		pago("3.33", model.MetodoSeguro),
		pago("100", model.MetodoEfectivo),
	}

	tot := service.CalcularTotales(pagos)

	suma := decimal.Zero
	for _, m := range model.MetodosPago {
		suma = suma.Add(tot.PorMetodo[m])
	}
	assert.True(t, suma.Equal(tot.Total))
}

func TestCalcularTotales_MetodoLegacyCuentaComoOtro(t *testing.T) {
	tot := service.CalcularTotales([]model.PagoTurno{
		pago("15", model.MetodoPago("VOUCHER")),
		pago("5", model.MetodoOtro),
	})

	assert.Equal(t, "20", tot.PorMetodo[model.MetodoOtro].String())
	assert.Len(t, tot.PorMetodo, len(model.MetodosPago))
}

func TestCalcularTotales_Determinista(t *testing.T) {
	pagos := []model.PagoTurno{
		pago("1.10", model.MetodoEfectivo),
		pago("2.20", model.MetodoTarjeta),
		pago("3.30", model.MetodoOtro),
	}

	a := service.CalcularTotales(pagos)
	b := service.CalcularTotales(pagos)

	assert.True(t, a.Igual(b))
}

func TestEfectivoEsperado(t *testing.T) {
	tot := service.CalcularTotales([]model.PagoTurno{
		pago("50", model.MetodoEfectivo),
		pago("30", model.MetodoTarjeta),
		pago("20", model.MetodoEfectivo),
	})

	assert.Equal(t, "170", service.EfectivoEsperado(decimal.NewFromInt(100), tot).String())
}

func TestTotalesService_LeeElLedger(t *testing.T) {
	store := repotest.NewStore()
	turnoID := uuid.New()
	store.Seed(model.TurnoCaja{ID: turnoID, Numero: "SHIFT-2025-00001", OperadorID: uuid.New(), Estado: model.EstadoAbierto})
	store.AgregarPagoCrudo(model.PagoTurno{TurnoID: turnoID, Monto: decimal.NewFromInt(40), Metodo: model.MetodoTarjeta})
	store.AgregarPagoCrudo(model.PagoTurno{TurnoID: uuid.New(), Monto: decimal.NewFromInt(999), Metodo: model.MetodoTarjeta})

	svc := service.NewTotalesService(store.Pagos())
	tot, err := svc.Calcular(context.Background(), nil, turnoID)

	require.NoError(t, err)
	assert.Equal(t, 1, tot.Cantidad)
	assert.Equal(t, "40", tot.Total.String())
}
