package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirTurnoRequest struct {
	MontoApertura decimal.Decimal `json:"monto_apertura" validate:"min=0"`
	Notas         *string         `json:"notas"          validate:"omitempty,max=500"`
}

type RegistrarPagoRequest struct {
	Monto  decimal.Decimal `json:"monto"  validate:"required,gt=0"`
	Metodo string          `json:"metodo"`
	// ReferenciaExterna links to an invoice or payment recorded elsewhere.
	ReferenciaExterna *string `json:"referencia_externa" validate:"omitempty,max=80"`
	Nota              *string `json:"nota"               validate:"omitempty,max=500"`
}

type CerrarTurnoRequest struct {
	EfectivoContado   decimal.Decimal `json:"efectivo_contado"   validate:"min=0"`
	ResponsableID     *string         `json:"responsable_id"     validate:"omitempty,uuid"`
	ResponsableNombre *string         `json:"responsable_nombre" validate:"omitempty,max=120"`
	Notas             *string         `json:"notas"              validate:"omitempty,max=500"`
}

type AnularTurnoRequest struct {
	Motivo *string `json:"motivo" validate:"omitempty,max=500"`
}

// TurnoFilter holds the conjunctive filters of the shift history.
type TurnoFilter struct {
	OperadorID *uuid.UUID
	Estado     string
	Desde      *time.Time // inclusive, on opened_at
	Hasta      *time.Time // exclusive, on opened_at
	Page       int
	PageSize   int
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type TotalesResponse struct {
	PorMetodo map[string]decimal.Decimal `json:"por_metodo"`
	Total     decimal.Decimal            `json:"total"`
	Cantidad  int                        `json:"cantidad"`
}

type TurnoResponse struct {
	ID                      string           `json:"id"`
	Numero                  string           `json:"numero"`
	OperadorID              string           `json:"operador_id"`
	Estado                  string           `json:"estado"`
	MontoApertura           decimal.Decimal  `json:"monto_apertura"`
	NotasApertura           *string          `json:"notas_apertura"`
	OpenedAt                string           `json:"opened_at"`
	ClosedAt                *string          `json:"closed_at"`
	EfectivoContado         *decimal.Decimal `json:"efectivo_contado"`
	EfectivoEsperado        *decimal.Decimal `json:"efectivo_esperado"`
	Diferencia              *decimal.Decimal `json:"diferencia"`
	Totales                 *TotalesResponse `json:"totales"` // frozen at close, null while OPEN
	ResponsableCierreID     *string          `json:"responsable_cierre_id"`
	ResponsableCierreNombre *string          `json:"responsable_cierre_nombre"`
	NotasCierre             *string          `json:"notas_cierre"`
}

type PagoResponse struct {
	ID                string          `json:"id"`
	TurnoID           string          `json:"turno_id"`
	Monto             decimal.Decimal `json:"monto"`
	Metodo            string          `json:"metodo"`
	MetodoOriginal    *string         `json:"metodo_original"`
	ReferenciaExterna *string         `json:"referencia_externa"`
	Nota              *string         `json:"nota"`
	RecordedAt        string          `json:"recorded_at"`
}

type ResumenTurnoResponse struct {
	Turno            TurnoResponse   `json:"turno"`
	Totales          TotalesResponse `json:"totales"` // always recomputed from the ledger
	EfectivoEsperado decimal.Decimal `json:"efectivo_esperado"`
}

type DesvioResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

type ReporteConciliacion struct {
	Totales          TotalesResponse `json:"totales"`
	MontoApertura    decimal.Decimal `json:"monto_apertura"`
	EfectivoEsperado decimal.Decimal `json:"efectivo_esperado"`
	EfectivoContado  decimal.Decimal `json:"efectivo_contado"`
	Desvio           DesvioResponse  `json:"desvio"`
}

type CierreTurnoResponse struct {
	Turno   TurnoResponse       `json:"turno"`
	Reporte ReporteConciliacion `json:"reporte"`
}

type PaginationResponse struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type HistorialTurnosResponse struct {
	Items      []TurnoResponse    `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}
