package repository

import (
	"context"

	"clinicaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PagoRepository is the payment ledger. It is append-only: there is no
// Update or Delete on purpose.
type PagoRepository interface {
	Create(ctx context.Context, tx *gorm.DB, p *model.PagoTurno) error
	ListByTurno(ctx context.Context, tx *gorm.DB, turnoID uuid.UUID) ([]model.PagoTurno, error)
	CountByTurno(ctx context.Context, tx *gorm.DB, turnoID uuid.UUID) (int64, error)
	SumByTurno(ctx context.Context, tx *gorm.DB, turnoID uuid.UUID) (decimal.Decimal, error)
}

type pagoRepo struct{ db *gorm.DB }

func NewPagoRepository(db *gorm.DB) PagoRepository { return &pagoRepo{db: db} }

func (r *pagoRepo) Create(ctx context.Context, tx *gorm.DB, p *model.PagoTurno) error {
	return mapError(conn(ctx, r.db, tx).Create(p).Error, "pago")
}

func (r *pagoRepo) ListByTurno(ctx context.Context, tx *gorm.DB, turnoID uuid.UUID) ([]model.PagoTurno, error) {
	var pagos []model.PagoTurno
	err := conn(ctx, r.db, tx).
		Where("turno_id = ?", turnoID).
		Order("recorded_at ASC, id ASC").
		Find(&pagos).Error
	return pagos, mapError(err, "pagos turno "+turnoID.String())
}

func (r *pagoRepo) CountByTurno(ctx context.Context, tx *gorm.DB, turnoID uuid.UUID) (int64, error) {
	var n int64
	err := conn(ctx, r.db, tx).Model(&model.PagoTurno{}).Where("turno_id = ?", turnoID).Count(&n).Error
	return n, mapError(err, "pagos turno "+turnoID.String())
}

func (r *pagoRepo) SumByTurno(ctx context.Context, tx *gorm.DB, turnoID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := conn(ctx, r.db, tx).Model(&model.PagoTurno{}).
		Select("COALESCE(SUM(monto), 0)").
		Where("turno_id = ?", turnoID).
		Row().Scan(&total)
	return total, mapError(err, "pagos turno "+turnoID.String())
}
