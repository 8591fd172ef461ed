package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"clinicaja/internal/dto"
	"clinicaja/internal/model"
	"clinicaja/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TurnoService interface {
	Abrir(ctx context.Context, operadorID uuid.UUID, req dto.AbrirTurnoRequest) (*dto.TurnoResponse, error)
	// MiTurnoAbierto returns nil, nil when the operator has no open shift.
	MiTurnoAbierto(ctx context.Context, operadorID uuid.UUID) (*dto.TurnoResponse, error)
	RegistrarPago(ctx context.Context, turnoID uuid.UUID, req dto.RegistrarPagoRequest) (*dto.PagoResponse, error)
	Resumen(ctx context.Context, turnoID uuid.UUID) (*dto.ResumenTurnoResponse, error)
	Cerrar(ctx context.Context, turnoID uuid.UUID, req dto.CerrarTurnoRequest) (*dto.CierreTurnoResponse, error)
	Anular(ctx context.Context, turnoID uuid.UUID, req dto.AnularTurnoRequest) (*dto.TurnoResponse, error)
}

// PublicadorEventos delivers lifecycle events after commit. worker.Dispatcher
// is the production implementation.
type PublicadorEventos interface {
	PublicarEventoTurno(ctx context.Context, ev dto.EventoTurno) error
}

// TurnoOptions tunes the lifecycle manager. Zero values take defaults.
type TurnoOptions struct {
	// MaxReintentosNumero bounds the retries after a shift-number collision.
	MaxReintentosNumero int
	// Now is the clock; tests pin it.
	Now func() time.Time
}

const defaultMaxReintentosNumero = 5

type turnoService struct {
	repo      repository.TurnoRepository
	pagos     repository.PagoRepository
	secuencia *SecuenciaTurnos
	totales   TotalesService
	eventos   PublicadorEventos

	maxReintentos int
	now           func() time.Time
}

func NewTurnoService(
	repo repository.TurnoRepository,
	pagos repository.PagoRepository,
	eventos PublicadorEventos,
	opts TurnoOptions,
) TurnoService {
	if opts.MaxReintentosNumero <= 0 {
		opts.MaxReintentosNumero = defaultMaxReintentosNumero
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &turnoService{
		repo:          repo,
		pagos:         pagos,
		secuencia:     NewSecuenciaTurnos(repo),
		totales:       NewTotalesService(pagos),
		eventos:       eventos,
		maxReintentos: opts.MaxReintentosNumero,
		now:           opts.Now,
	}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *turnoService) Abrir(ctx context.Context, operadorID uuid.UUID, req dto.AbrirTurnoRequest) (*dto.TurnoResponse, error) {
	if operadorID == uuid.Nil {
		return nil, fmt.Errorf("operador requerido: %w", model.ErrValidacion)
	}
	if req.MontoApertura.IsNegative() {
		return nil, fmt.Errorf("monto_apertura no puede ser negativo: %w", model.ErrValidacion)
	}
	if err := model.ValidarMonto("monto_apertura", req.MontoApertura, model.MontoMaximo); err != nil {
		return nil, err
	}

	// Fast path: reject before allocating a number. The partial unique index
	// still decides races between two concurrent opens.
	existente, err := s.repo.FindAbiertoPorOperador(ctx, nil, operadorID)
	if err != nil {
		return nil, err
	}
	if existente != nil {
		return nil, fmt.Errorf("el operador ya tiene abierto el turno %s: %w", existente.Numero, model.ErrConflicto)
	}

	var turno *model.TurnoCaja
	for intento := 1; ; intento++ {
		err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			now := s.now()
			numero, err := s.secuencia.Siguiente(ctx, tx, now.Year())
			if err != nil {
				return err
			}
			t := &model.TurnoCaja{
				ID:            uuid.New(),
				Numero:        numero,
				OperadorID:    operadorID,
				Estado:        model.EstadoAbierto,
				MontoApertura: req.MontoApertura,
				NotasApertura: limpiar(req.Notas),
				OpenedAt:      now,
			}
			if err := s.repo.Create(ctx, tx, t); err != nil {
				return err
			}
			turno = t
			return nil
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrNumeroDuplicado) {
			return nil, err
		}
		if intento >= s.maxReintentos {
			return nil, fmt.Errorf("abrir turno: %d colisiones de numeración: %w", intento, err)
		}
		log.Debug().Int("intento", intento).Str("operador_id", operadorID.String()).Msg("colisión de número de turno, reintentando")
		if err := esperarReintento(ctx, intento); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("turno_id", turno.ID.String()).
		Str("numero", turno.Numero).
		Str("operador_id", operadorID.String()).
		Str("monto_apertura", turno.MontoApertura.String()).
		Msg("turno abierto")

	resp := turnoToResponse(turno)
	return &resp, nil
}

// ── MiTurnoAbierto ────────────────────────────────────────────────────────────

func (s *turnoService) MiTurnoAbierto(ctx context.Context, operadorID uuid.UUID) (*dto.TurnoResponse, error) {
	t, err := s.repo.FindAbiertoPorOperador(ctx, nil, operadorID)
	if err != nil || t == nil {
		return nil, err
	}
	resp := turnoToResponse(t)
	return &resp, nil
}

// ── RegistrarPago ─────────────────────────────────────────────────────────────
// Payments take a shared lock on the shift row: they run side by side, and a
// close or annul (exclusive lock) waits for them or makes them fail.

func (s *turnoService) RegistrarPago(ctx context.Context, turnoID uuid.UUID, req dto.RegistrarPagoRequest) (*dto.PagoResponse, error) {
	if !req.Monto.IsPositive() {
		return nil, fmt.Errorf("monto debe ser mayor a cero: %w", model.ErrValidacion)
	}
	if err := model.ValidarMonto("monto", req.Monto, model.MontoMaximo); err != nil {
		return nil, err
	}
	metodo := model.NormalizarMetodo(req.Metodo)

	var pago *model.PagoTurno
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		t, err := s.repo.FindByIDForShare(ctx, tx, turnoID)
		if err != nil {
			return err
		}
		if !t.Abierto() {
			return fmt.Errorf("turno %s está %s y no admite pagos: %w", t.Numero, t.Estado, model.ErrEstadoInvalido)
		}
		acumulado, err := s.pagos.SumByTurno(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if acumulado.Add(req.Monto).GreaterThan(model.TotalTurnoMaximo) {
			return fmt.Errorf("turno %s: el total de pagos superaría %s: %w",
				t.Numero, model.TotalTurnoMaximo.StringFixed(model.DecimalesMonto), model.ErrValidacion)
		}
		p := &model.PagoTurno{
			ID:                uuid.New(),
			TurnoID:           t.ID,
			Monto:             req.Monto,
			Metodo:            metodo.Metodo,
			MetodoOriginal:    metodo.Original,
			ReferenciaExterna: limpiar(req.ReferenciaExterna),
			Nota:              limpiar(req.Nota),
			RecordedAt:        s.now(),
		}
		if err := s.pagos.Create(ctx, tx, p); err != nil {
			return err
		}
		pago = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("turno_id", turnoID.String()).
		Str("pago_id", pago.ID.String()).
		Str("metodo", string(pago.Metodo)).
		Str("monto", pago.Monto.String()).
		Msg("pago registrado")

	resp := pagoToResponse(pago)
	return &resp, nil
}

// ── Resumen ───────────────────────────────────────────────────────────────────

func (s *turnoService) Resumen(ctx context.Context, turnoID uuid.UUID) (*dto.ResumenTurnoResponse, error) {
	t, err := s.repo.FindByID(ctx, turnoID)
	if err != nil {
		return nil, err
	}
	tot, err := s.totales.Calcular(ctx, nil, turnoID)
	if err != nil {
		return nil, err
	}
	return &dto.ResumenTurnoResponse{
		Turno:            turnoToResponse(t),
		Totales:          totalesToResponse(tot),
		EfectivoEsperado: EfectivoEsperado(t.MontoApertura, tot),
	}, nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// The only place the variance is computed. Totals are frozen onto the shift
// here and never recomputed into storage again.

func (s *turnoService) Cerrar(ctx context.Context, turnoID uuid.UUID, req dto.CerrarTurnoRequest) (*dto.CierreTurnoResponse, error) {
	if req.EfectivoContado.IsNegative() {
		return nil, fmt.Errorf("efectivo_contado no puede ser negativo: %w", model.ErrValidacion)
	}
	if err := model.ValidarMonto("efectivo_contado", req.EfectivoContado, model.TotalTurnoMaximo); err != nil {
		return nil, err
	}
	var responsableID *uuid.UUID
	if req.ResponsableID != nil && strings.TrimSpace(*req.ResponsableID) != "" {
		id, err := uuid.Parse(*req.ResponsableID)
		if err != nil {
			return nil, fmt.Errorf("responsable_id inválido: %w", model.ErrValidacion)
		}
		responsableID = &id
	}

	var (
		turno *model.TurnoCaja
		tot   model.Totales
	)
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		t, err := s.repo.FindByIDForUpdate(ctx, tx, turnoID)
		if err != nil {
			return err
		}
		if !t.Abierto() {
			return fmt.Errorf("turno %s ya está %s: %w", t.Numero, t.Estado, model.ErrEstadoInvalido)
		}

		tot, err = s.totales.Calcular(ctx, tx, turnoID)
		if err != nil {
			return err
		}
		esperado := EfectivoEsperado(t.MontoApertura, tot)
		contado := req.EfectivoContado
		diferencia := contado.Sub(esperado)
		now := s.now()

		t.Estado = model.EstadoCerrado
		t.ClosedAt = &now
		t.EfectivoContado = &contado
		t.EfectivoEsperado = &esperado
		t.Diferencia = &diferencia
		t.CongelarTotales(tot)
		t.ResponsableCierreID = responsableID
		t.ResponsableCierreNombre = limpiar(req.ResponsableNombre)
		t.NotasCierre = limpiar(req.Notas)

		if err := s.repo.Finalizar(ctx, tx, t); err != nil {
			return err
		}
		turno = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	reporte := construirReporte(turno, tot)
	log.Info().
		Str("turno_id", turno.ID.String()).
		Str("numero", turno.Numero).
		Str("efectivo_esperado", reporte.EfectivoEsperado.String()).
		Str("efectivo_contado", reporte.EfectivoContado.String()).
		Str("diferencia", reporte.Desvio.Monto.String()).
		Str("clasificacion", reporte.Desvio.Clasificacion).
		Msg("turno cerrado")

	s.publicar(ctx, turno)

	return &dto.CierreTurnoResponse{Turno: turnoToResponse(turno), Reporte: reporte}, nil
}

// ── Anular ────────────────────────────────────────────────────────────────────
// Safety valve for a shift opened by mistake. A shift with payments must be
// closed instead.

func (s *turnoService) Anular(ctx context.Context, turnoID uuid.UUID, req dto.AnularTurnoRequest) (*dto.TurnoResponse, error) {
	var turno *model.TurnoCaja
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		t, err := s.repo.FindByIDForUpdate(ctx, tx, turnoID)
		if err != nil {
			return err
		}
		if !t.Abierto() {
			return fmt.Errorf("turno %s ya está %s: %w", t.Numero, t.Estado, model.ErrEstadoInvalido)
		}
		n, err := s.pagos.CountByTurno(ctx, tx, turnoID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("turno %s tiene %d pagos registrados; debe cerrarse: %w", t.Numero, n, model.ErrConflicto)
		}

		now := s.now()
		t.Estado = model.EstadoAnulado
		t.ClosedAt = &now
		t.NotasCierre = limpiar(req.Motivo)
		if err := s.repo.Finalizar(ctx, tx, t); err != nil {
			return err
		}
		turno = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("turno_id", turno.ID.String()).
		Str("numero", turno.Numero).
		Msg("turno anulado")

	s.publicar(ctx, turno)

	resp := turnoToResponse(turno)
	return &resp, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// publicar delivers the lifecycle event after commit. A failure leaves
// evento_publicado_at NULL and the retry cron picks it up.
func (s *turnoService) publicar(ctx context.Context, t *model.TurnoCaja) {
	if s.eventos == nil {
		return
	}
	ev := NuevoEventoTurno(t)
	if err := s.eventos.PublicarEventoTurno(ctx, ev); err != nil {
		log.Warn().Err(err).Str("turno_id", ev.TurnoID).Str("tipo", ev.Tipo).Msg("evento de turno no publicado")
		return
	}
	if err := s.repo.MarcarPublicado(ctx, t.ID, s.now()); err != nil {
		log.Warn().Err(err).Str("turno_id", ev.TurnoID).Msg("no se pudo marcar evento publicado")
	}
}

// umbrales de clasificación del desvío, en porcentaje del efectivo esperado
var (
	umbralNormal      = decimal.NewFromInt(1)
	umbralAdvertencia = decimal.NewFromInt(5)
	cien              = decimal.NewFromInt(100)
)

func construirReporte(t *model.TurnoCaja, tot model.Totales) dto.ReporteConciliacion {
	esperado := *t.EfectivoEsperado
	diferencia := *t.Diferencia
	pct := porcentajeDesvio(diferencia, esperado)
	return dto.ReporteConciliacion{
		Totales:          totalesToResponse(tot),
		MontoApertura:    t.MontoApertura,
		EfectivoEsperado: esperado,
		EfectivoContado:  *t.EfectivoContado,
		Desvio: dto.DesvioResponse{
			Monto:         diferencia,
			Porcentaje:    pct,
			Clasificacion: clasificarDesvio(pct),
		},
	}
}

func porcentajeDesvio(diferencia, esperado decimal.Decimal) decimal.Decimal {
	if esperado.IsZero() {
		// Any difference against an empty drawer is a full deviation.
		return decimal.NewFromInt(int64(diferencia.Sign())).Mul(cien)
	}
	return diferencia.Div(esperado).Mul(cien).Round(2)
}

// clasificarDesvio returns "normal" | "advertencia" | "critico"
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func clasificarDesvio(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(umbralNormal):
		return "normal"
	case abs.LessThanOrEqual(umbralAdvertencia):
		return "advertencia"
	default:
		return "critico"
	}
}

func limpiar(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func esperarReintento(ctx context.Context, intento int) error {
	espera := time.Duration(intento)*10*time.Millisecond + time.Duration(rand.IntN(10))*time.Millisecond
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(espera):
		return nil
	}
}
