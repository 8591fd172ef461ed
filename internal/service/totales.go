package service

import (
	"context"

	"clinicaja/internal/model"
	"clinicaja/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TotalesService derives a shift's totals from its payment ledger.
// Nothing is cached: every call reads the ledger again.
type TotalesService interface {
	Calcular(ctx context.Context, tx *gorm.DB, turnoID uuid.UUID) (model.Totales, error)
}

type totalesService struct {
	pagos repository.PagoRepository
}

func NewTotalesService(pagos repository.PagoRepository) TotalesService {
	return &totalesService{pagos: pagos}
}

func (s *totalesService) Calcular(ctx context.Context, tx *gorm.DB, turnoID uuid.UUID) (model.Totales, error) {
	pagos, err := s.pagos.ListByTurno(ctx, tx, turnoID)
	if err != nil {
		return model.Totales{}, err
	}
	return CalcularTotales(pagos), nil
}

// CalcularTotales buckets payments by method and sums them. Every bucket is
// present in the result, zero when empty, so two calls over the same payments
// always produce identical values.
func CalcularTotales(pagos []model.PagoTurno) model.Totales {
	tot := model.Totales{
		PorMetodo: make(map[model.MetodoPago]decimal.Decimal, len(model.MetodosPago)),
		Total:     decimal.Zero,
	}
	for _, m := range model.MetodosPago {
		tot.PorMetodo[m] = decimal.Zero
	}
	for _, p := range pagos {
		bucket := p.Metodo.Bucket()
		tot.PorMetodo[bucket] = tot.PorMetodo[bucket].Add(p.Monto)
		tot.Total = tot.Total.Add(p.Monto)
		tot.Cantidad++
	}
	return tot
}

// EfectivoEsperado is the opening float plus every CASH payment.
func EfectivoEsperado(montoApertura decimal.Decimal, tot model.Totales) decimal.Decimal {
	return montoApertura.Add(tot.Efectivo())
}
