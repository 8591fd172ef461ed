// Package repotest provides an in-memory implementation of the shift store
// and payment ledger for unit tests. It enforces the same constraints the SQL
// schema does: unique shift number, one OPEN shift per operator, conditional
// terminal transitions, and no payments into a shift that left OPEN.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"clinicaja/internal/dto"
	"clinicaja/internal/model"
	"clinicaja/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Range limits of NUMERIC(12,2) and NUMERIC(18,2).
var (
	limiteMonto = decimal.New(1, 10)
	limiteTotal = decimal.New(1, 16)
)

// numerico stores m the way a NUMERIC(p,2) column does: rounded half away
// from zero to cents, and out of range when the rounded value reaches limite.
func numerico(m decimal.Decimal, limite decimal.Decimal) (decimal.Decimal, error) {
	r := m.Round(model.DecimalesMonto)
	if r.Abs().GreaterThanOrEqual(limite) {
		return r, fmt.Errorf("valor numérico fuera de rango: %w", model.ErrValidacion)
	}
	return r, nil
}

func numericoPtr(m *decimal.Decimal, limite decimal.Decimal) (*decimal.Decimal, error) {
	if m == nil {
		return nil, nil
	}
	r, err := numerico(*m, limite)
	return &r, err
}

type Store struct {
	mu     sync.Mutex
	turnos map[uuid.UUID]*model.TurnoCaja
	pagos  []model.PagoTurno
}

func NewStore() *Store {
	return &Store{turnos: make(map[uuid.UUID]*model.TurnoCaja)}
}

// Turnos returns the TurnoRepository view of the store.
func (s *Store) Turnos() *TurnoRepo { return &TurnoRepo{s: s} }

// Pagos returns the PagoRepository view of the store.
func (s *Store) Pagos() *PagoRepo { return &PagoRepo{s: s} }

// Seed inserts a shift as-is, bypassing every check. Used for legacy rows.
func (s *Store) Seed(t model.TurnoCaja) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.turnos[t.ID] = &t
}

// Turno returns a copy of the stored shift.
func (s *Store) Turno(id uuid.UUID) (model.TurnoCaja, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.turnos[id]
	if !ok {
		return model.TurnoCaja{}, false
	}
	return *t, true
}

// PagosDe returns a copy of the payments of a shift, in insertion order.
func (s *Store) PagosDe(turnoID uuid.UUID) []model.PagoTurno {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagosDe(turnoID)
}

func (s *Store) pagosDe(turnoID uuid.UUID) []model.PagoTurno {
	var out []model.PagoTurno
	for _, p := range s.pagos {
		if p.TurnoID == turnoID {
			out = append(out, p)
		}
	}
	return out
}

// AgregarPagoCrudo appends a payment without checking the shift state. It
// exists to simulate rows written by other systems.
func (s *Store) AgregarPagoCrudo(p model.PagoTurno) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.pagos = append(s.pagos, p)
}

// ── TurnoRepository ──────────────────────────────────────────────────────────

type TurnoRepo struct{ s *Store }

var _ repository.TurnoRepository = (*TurnoRepo)(nil)

func (r *TurnoRepo) DB() *gorm.DB { return nil }

func (r *TurnoRepo) Create(_ context.Context, _ *gorm.DB, t *model.TurnoCaja) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.turnos {
		if existing.Numero == t.Numero {
			return fmt.Errorf("turno: %w", repository.ErrNumeroDuplicado)
		}
		if t.Estado == model.EstadoAbierto && existing.OperadorID == t.OperadorID && existing.Estado == model.EstadoAbierto {
			return fmt.Errorf("turno: el operador ya tiene un turno abierto: %w", model.ErrConflicto)
		}
	}
	apertura, err := numerico(t.MontoApertura, limiteMonto)
	if err != nil {
		return fmt.Errorf("turno: %w", err)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	cp.MontoApertura = apertura
	r.s.turnos[t.ID] = &cp
	return nil
}

func (r *TurnoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.TurnoCaja, error) {
	return r.find(id)
}

func (r *TurnoRepo) FindByIDForUpdate(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.TurnoCaja, error) {
	return r.find(id)
}

func (r *TurnoRepo) FindByIDForShare(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.TurnoCaja, error) {
	return r.find(id)
}

func (r *TurnoRepo) find(id uuid.UUID) (*model.TurnoCaja, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.turnos[id]
	if !ok {
		return nil, fmt.Errorf("turno %s: %w", id, model.ErrNoEncontrado)
	}
	cp := *t
	return &cp, nil
}

func (r *TurnoRepo) FindAbiertoPorOperador(_ context.Context, _ *gorm.DB, operadorID uuid.UUID) (*model.TurnoCaja, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.turnos {
		if t.OperadorID == operadorID && t.Estado == model.EstadoAbierto {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *TurnoRepo) LockSecuencia(context.Context, *gorm.DB, string) error { return nil }

func (r *TurnoRepo) MaxNumero(_ context.Context, _ *gorm.DB, prefijo string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	best, bestN := "", -1
	for _, t := range r.s.turnos {
		if !strings.HasPrefix(t.Numero, prefijo) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(t.Numero, prefijo))
		if err != nil {
			continue
		}
		if n > bestN {
			best, bestN = t.Numero, n
		}
	}
	return best, nil
}

func (r *TurnoRepo) Finalizar(_ context.Context, _ *gorm.DB, t *model.TurnoCaja) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.turnos[t.ID]
	if !ok {
		return fmt.Errorf("turno %s: %w", t.ID, model.ErrNoEncontrado)
	}
	if stored.Estado != model.EstadoAbierto {
		return fmt.Errorf("turno %s: ya no está abierto: %w", t.ID, model.ErrEstadoInvalido)
	}
	cp := *t
	cp.EventoPublicadoAt = stored.EventoPublicadoAt
	for _, col := range []**decimal.Decimal{
		&cp.EfectivoContado, &cp.EfectivoEsperado, &cp.Diferencia,
		&cp.TotalEfectivo, &cp.TotalTarjeta, &cp.TotalTransferencia,
		&cp.TotalSeguro, &cp.TotalOtros, &cp.TotalGeneral,
	} {
		v, err := numericoPtr(*col, limiteTotal)
		if err != nil {
			return fmt.Errorf("turno %s: %w", t.ID, err)
		}
		*col = v
	}
	r.s.turnos[t.ID] = &cp
	return nil
}

func (r *TurnoRepo) List(_ context.Context, f dto.TurnoFilter) ([]model.TurnoCaja, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.TurnoCaja
	for _, t := range r.s.turnos {
		if f.OperadorID != nil && t.OperadorID != *f.OperadorID {
			continue
		}
		if f.Estado != "" && t.Estado != f.Estado {
			continue
		}
		if f.Desde != nil && t.OpenedAt.Before(*f.Desde) {
			continue
		}
		if f.Hasta != nil && !t.OpenedAt.Before(*f.Hasta) {
			continue
		}
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt.After(all[j].OpenedAt) })

	total := int64(len(all))
	start := (f.Page - 1) * f.PageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *TurnoRepo) ListSinPublicar(_ context.Context, limit int) ([]model.TurnoCaja, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.TurnoCaja
	for _, t := range r.s.turnos {
		if t.Estado != model.EstadoAbierto && t.EventoPublicadoAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TurnoRepo) MarcarPublicado(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.turnos[id]
	if !ok {
		return fmt.Errorf("turno %s: %w", id, model.ErrNoEncontrado)
	}
	t.EventoPublicadoAt = &at
	return nil
}

// ── PagoRepository ───────────────────────────────────────────────────────────

type PagoRepo struct{ s *Store }

var _ repository.PagoRepository = (*PagoRepo)(nil)

// Create rejects payments into a missing or non-OPEN shift, which is what the
// row lock taken by the service guarantees against a real database.
func (r *PagoRepo) Create(_ context.Context, _ *gorm.DB, p *model.PagoTurno) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.turnos[p.TurnoID]
	if !ok {
		return fmt.Errorf("pago: %w", model.ErrNoEncontrado)
	}
	if t.Estado != model.EstadoAbierto {
		return fmt.Errorf("pago: turno %s: %w", t.Numero, model.ErrEstadoInvalido)
	}
	monto, err := numerico(p.Monto, limiteMonto)
	if err != nil {
		return fmt.Errorf("pago: %w", err)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	cp.Monto = monto
	r.s.pagos = append(r.s.pagos, cp)
	return nil
}

func (r *PagoRepo) ListByTurno(_ context.Context, _ *gorm.DB, turnoID uuid.UUID) ([]model.PagoTurno, error) {
	return r.s.PagosDe(turnoID), nil
}

func (r *PagoRepo) CountByTurno(_ context.Context, _ *gorm.DB, turnoID uuid.UUID) (int64, error) {
	return int64(len(r.s.PagosDe(turnoID))), nil
}

func (r *PagoRepo) SumByTurno(_ context.Context, _ *gorm.DB, turnoID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range r.s.PagosDe(turnoID) {
		total = total.Add(p.Monto)
	}
	return total, nil
}
