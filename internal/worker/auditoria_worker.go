package worker

// auditoria_worker.go
// Processes turno_cerrado jobs from QueueTurnos.
// Recomputes the totals of a closed shift from its payment ledger and checks
// them against the snapshot frozen at close.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clinicaja/internal/dto"
	"clinicaja/internal/model"
	"clinicaja/internal/repository"
	"clinicaja/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrAuditoria marks a closed shift whose stored figures disagree with its ledger.
var ErrAuditoria = errors.New("auditoría de cierre fallida")

// AuditoriaCierreWorker verifies closed shifts.
type AuditoriaCierreWorker struct {
	turnos repository.TurnoRepository
	pagos  repository.PagoRepository
}

func NewAuditoriaCierreWorker(turnos repository.TurnoRepository, pagos repository.PagoRepository) *AuditoriaCierreWorker {
	return &AuditoriaCierreWorker{turnos: turnos, pagos: pagos}
}

// Process fails with ErrAuditoria when the snapshot, the expected cash or the
// variance cannot be reproduced from the ledger.
func (w *AuditoriaCierreWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var ev dto.EventoTurno
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("auditoria_worker: invalid payload: %w", err)
	}
	id, err := uuid.Parse(ev.TurnoID)
	if err != nil {
		return fmt.Errorf("auditoria_worker: turno_id %q: %w", ev.TurnoID, err)
	}

	t, err := w.turnos.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("auditoria_worker: %w", err)
	}
	if t.Estado != model.EstadoCerrado {
		return fmt.Errorf("turno %s en estado %s: %w", t.Numero, t.Estado, ErrAuditoria)
	}
	snapshot := t.Snapshot()
	if snapshot == nil || t.EfectivoEsperado == nil || t.EfectivoContado == nil || t.Diferencia == nil {
		return fmt.Errorf("turno %s cerrado sin snapshot: %w", t.Numero, ErrAuditoria)
	}

	pagos, err := w.pagos.ListByTurno(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("auditoria_worker: %w", err)
	}
	vivo := service.CalcularTotales(pagos)
	if !snapshot.Igual(vivo) {
		return fmt.Errorf("turno %s: snapshot total=%s/%d, ledger total=%s/%d: %w",
			t.Numero, snapshot.Total, snapshot.Cantidad, vivo.Total, vivo.Cantidad, ErrAuditoria)
	}
	esperado := service.EfectivoEsperado(t.MontoApertura, vivo)
	if !esperado.Equal(*t.EfectivoEsperado) {
		return fmt.Errorf("turno %s: efectivo esperado %s, recalculado %s: %w",
			t.Numero, t.EfectivoEsperado, esperado, ErrAuditoria)
	}
	if !t.EfectivoContado.Sub(esperado).Equal(*t.Diferencia) {
		return fmt.Errorf("turno %s: diferencia %s no cuadra: %w", t.Numero, t.Diferencia, ErrAuditoria)
	}

	log.Info().
		Str("turno_id", ev.TurnoID).
		Str("numero", t.Numero).
		Int("pagos", vivo.Cantidad).
		Msg("auditoria_worker: cierre verificado")
	return nil
}
