package repository

import (
	"context"
	"errors"
	"fmt"

	"clinicaja/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Constraint names created by the SQL migrations.
const (
	ConstraintOperadorAbierto = "ux_turnos_caja_operador_abierto"
	ConstraintNumero          = "ux_turnos_caja_numero"
)

// ErrNumeroDuplicado signals that another writer took the shift number first.
// It is retried by the caller and never reaches the transport layer.
var ErrNumeroDuplicado = errors.New("numero de turno duplicado")

// mapError converts gorm/pgconn errors into the model error taxonomy.
// Context errors and unknown driver errors pass through wrapped: those are
// the transient class.
func mapError(err error, entidad string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", entidad, err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", entidad, model.ErrNoEncontrado)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch pgErr.ConstraintName {
			case ConstraintOperadorAbierto:
				return fmt.Errorf("%s: el operador ya tiene un turno abierto: %w", entidad, model.ErrConflicto)
			case ConstraintNumero:
				return fmt.Errorf("%s: %w", entidad, ErrNumeroDuplicado)
			}
			return fmt.Errorf("%s: %w", entidad, model.ErrConflicto)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", entidad, model.ErrNoEncontrado)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w", entidad, model.ErrValidacion)
		case "22003": // numeric_value_out_of_range
			return fmt.Errorf("%s: monto fuera de rango: %w", entidad, model.ErrValidacion)
		}
	}
	return fmt.Errorf("%s: %w", entidad, err)
}

// conn picks the transaction when one is in flight.
func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
