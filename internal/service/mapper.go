package service

import (
	"time"

	"clinicaja/internal/dto"
	"clinicaja/internal/model"

	"github.com/shopspring/decimal"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func turnoToResponse(t *model.TurnoCaja) dto.TurnoResponse {
	resp := dto.TurnoResponse{
		ID:                      t.ID.String(),
		Numero:                  t.Numero,
		OperadorID:              t.OperadorID.String(),
		Estado:                  t.Estado,
		MontoApertura:           t.MontoApertura,
		NotasApertura:           t.NotasApertura,
		OpenedAt:                formatTime(t.OpenedAt),
		EfectivoContado:         t.EfectivoContado,
		EfectivoEsperado:        t.EfectivoEsperado,
		Diferencia:              t.Diferencia,
		ResponsableCierreNombre: t.ResponsableCierreNombre,
		NotasCierre:             t.NotasCierre,
	}
	if t.ClosedAt != nil {
		s := formatTime(*t.ClosedAt)
		resp.ClosedAt = &s
	}
	if t.ResponsableCierreID != nil {
		s := t.ResponsableCierreID.String()
		resp.ResponsableCierreID = &s
	}
	if snap := t.Snapshot(); snap != nil {
		tot := totalesToResponse(*snap)
		resp.Totales = &tot
	}
	return resp
}

func totalesToResponse(tot model.Totales) dto.TotalesResponse {
	porMetodo := make(map[string]decimal.Decimal, len(model.MetodosPago))
	for _, m := range model.MetodosPago {
		porMetodo[string(m)] = tot.PorMetodo[m]
	}
	return dto.TotalesResponse{PorMetodo: porMetodo, Total: tot.Total, Cantidad: tot.Cantidad}
}

func pagoToResponse(p *model.PagoTurno) dto.PagoResponse {
	return dto.PagoResponse{
		ID:                p.ID.String(),
		TurnoID:           p.TurnoID.String(),
		Monto:             p.Monto,
		Metodo:            string(p.Metodo),
		MetodoOriginal:    p.MetodoOriginal,
		ReferenciaExterna: p.ReferenciaExterna,
		Nota:              p.Nota,
		RecordedAt:        formatTime(p.RecordedAt),
	}
}

// NuevoEventoTurno builds the lifecycle event for a shift in a terminal state.
func NuevoEventoTurno(t *model.TurnoCaja) dto.EventoTurno {
	tipo := dto.EventoTurnoCerrado
	if t.Estado == model.EstadoAnulado {
		tipo = dto.EventoTurnoAnulado
	}
	ocurrido := t.OpenedAt
	if t.ClosedAt != nil {
		ocurrido = *t.ClosedAt
	}
	return dto.EventoTurno{
		Tipo:       tipo,
		TurnoID:    t.ID.String(),
		Numero:     t.Numero,
		OperadorID: t.OperadorID.String(),
		Estado:     t.Estado,
		OcurridoAt: formatTime(ocurrido),
	}
}
