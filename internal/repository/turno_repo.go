package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"clinicaja/internal/dto"
	"clinicaja/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TurnoRepository interface {
	Create(ctx context.Context, tx *gorm.DB, t *model.TurnoCaja) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TurnoCaja, error)
	// FindByIDForUpdate takes an exclusive row lock; close and annul use it.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TurnoCaja, error)
	// FindByIDForShare takes a shared row lock; concurrent payments use it.
	FindByIDForShare(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TurnoCaja, error)
	// FindAbiertoPorOperador returns nil, nil when the operator has no open shift.
	FindAbiertoPorOperador(ctx context.Context, tx *gorm.DB, operadorID uuid.UUID) (*model.TurnoCaja, error)
	// LockSecuencia serialises number allocation for a prefix until tx ends.
	LockSecuencia(ctx context.Context, tx *gorm.DB, prefijo string) error
	// MaxNumero returns the well-formed number with the highest suffix under
	// prefijo, or "" when there is none.
	MaxNumero(ctx context.Context, tx *gorm.DB, prefijo string) (string, error)
	// Finalizar moves an OPEN shift to a terminal state. Zero affected rows
	// means someone else got there first.
	Finalizar(ctx context.Context, tx *gorm.DB, t *model.TurnoCaja) error
	List(ctx context.Context, filter dto.TurnoFilter) ([]model.TurnoCaja, int64, error)
	ListSinPublicar(ctx context.Context, limit int) ([]model.TurnoCaja, error)
	MarcarPublicado(ctx context.Context, id uuid.UUID, at time.Time) error
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type turnoRepo struct{ db *gorm.DB }

func NewTurnoRepository(db *gorm.DB) TurnoRepository { return &turnoRepo{db: db} }

func (r *turnoRepo) DB() *gorm.DB { return r.db }

func (r *turnoRepo) Create(ctx context.Context, tx *gorm.DB, t *model.TurnoCaja) error {
	return mapError(conn(ctx, r.db, tx).Create(t).Error, "turno")
}

func (r *turnoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.TurnoCaja, error) {
	var t model.TurnoCaja
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, mapError(err, "turno "+id.String())
	}
	return &t, nil
}

func (r *turnoRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TurnoCaja, error) {
	return r.findLocked(ctx, tx, id, "UPDATE")
}

func (r *turnoRepo) FindByIDForShare(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TurnoCaja, error) {
	return r.findLocked(ctx, tx, id, "SHARE")
}

func (r *turnoRepo) findLocked(ctx context.Context, tx *gorm.DB, id uuid.UUID, strength string) (*model.TurnoCaja, error) {
	var t model.TurnoCaja
	err := conn(ctx, r.db, tx).
		Clauses(clause.Locking{Strength: strength}).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, mapError(err, "turno "+id.String())
	}
	return &t, nil
}

func (r *turnoRepo) FindAbiertoPorOperador(ctx context.Context, tx *gorm.DB, operadorID uuid.UUID) (*model.TurnoCaja, error) {
	var turnos []model.TurnoCaja
	err := conn(ctx, r.db, tx).
		Where("operador_id = ? AND estado = ?", operadorID, model.EstadoAbierto).
		Limit(1).
		Find(&turnos).Error
	if err != nil {
		return nil, mapError(err, "turno abierto")
	}
	if len(turnos) == 0 {
		return nil, nil
	}
	return &turnos[0], nil
}

func (r *turnoRepo) LockSecuencia(ctx context.Context, tx *gorm.DB, prefijo string) error {
	if tx == nil {
		return fmt.Errorf("lock secuencia %s: se requiere una transacción", prefijo)
	}
	err := tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefijo).Error
	return mapError(err, "lock secuencia "+prefijo)
}

func (r *turnoRepo) MaxNumero(ctx context.Context, tx *gorm.DB, prefijo string) (string, error) {
	// Legacy or hand-typed numbers that do not end in digits are skipped, which
	// is the same as counting them as zero.
	var numeros []string
	err := conn(ctx, r.db, tx).Raw(`
		SELECT numero FROM turnos_caja
		WHERE numero LIKE ? AND numero ~ ?
		ORDER BY CAST(SUBSTRING(numero FROM '[0-9]+$') AS BIGINT) DESC
		LIMIT 1`,
		prefijo+"%", "^"+regexp.QuoteMeta(prefijo)+"[0-9]+$",
	).Scan(&numeros).Error
	if err != nil {
		return "", mapError(err, "max numero "+prefijo)
	}
	if len(numeros) == 0 {
		return "", nil
	}
	return numeros[0], nil
}

func (r *turnoRepo) Finalizar(ctx context.Context, tx *gorm.DB, t *model.TurnoCaja) error {
	res := conn(ctx, r.db, tx).
		Model(&model.TurnoCaja{}).
		Where("id = ? AND estado = ?", t.ID, model.EstadoAbierto).
		Updates(map[string]interface{}{
			"estado":                    t.Estado,
			"closed_at":                 t.ClosedAt,
			"efectivo_contado":          t.EfectivoContado,
			"efectivo_esperado":         t.EfectivoEsperado,
			"diferencia":                t.Diferencia,
			"total_efectivo":            t.TotalEfectivo,
			"total_tarjeta":             t.TotalTarjeta,
			"total_transferencia":       t.TotalTransferencia,
			"total_seguro":              t.TotalSeguro,
			"total_otros":               t.TotalOtros,
			"total_general":             t.TotalGeneral,
			"cantidad_pagos":            t.CantidadPagos,
			"responsable_cierre_id":     t.ResponsableCierreID,
			"responsable_cierre_nombre": t.ResponsableCierreNombre,
			"notas_cierre":              t.NotasCierre,
		})
	if res.Error != nil {
		return mapError(res.Error, "turno "+t.ID.String())
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("turno %s: ya no está abierto: %w", t.ID, model.ErrEstadoInvalido)
	}
	return nil
}

func (r *turnoRepo) List(ctx context.Context, filter dto.TurnoFilter) ([]model.TurnoCaja, int64, error) {
	var turnos []model.TurnoCaja
	var total int64
	offset := (filter.Page - 1) * filter.PageSize

	q := r.db.WithContext(ctx).Model(&model.TurnoCaja{})
	if filter.OperadorID != nil {
		q = q.Where("operador_id = ?", *filter.OperadorID)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.Desde != nil {
		q = q.Where("opened_at >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		q = q.Where("opened_at < ?", *filter.Hasta)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err, "historial turnos")
	}

	err := q.Order("opened_at DESC").
		Offset(offset).Limit(filter.PageSize).
		Find(&turnos).Error
	if err != nil {
		return nil, 0, mapError(err, "historial turnos")
	}
	return turnos, total, nil
}

func (r *turnoRepo) ListSinPublicar(ctx context.Context, limit int) ([]model.TurnoCaja, error) {
	var turnos []model.TurnoCaja
	err := r.db.WithContext(ctx).
		Where("estado <> ? AND evento_publicado_at IS NULL", model.EstadoAbierto).
		Order("closed_at ASC").
		Limit(limit).
		Find(&turnos).Error
	return turnos, mapError(err, "turnos sin publicar")
}

func (r *turnoRepo) MarcarPublicado(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.TurnoCaja{}).
		Where("id = ?", id).
		Update("evento_publicado_at", at).Error
	return mapError(err, "turno "+id.String())
}
