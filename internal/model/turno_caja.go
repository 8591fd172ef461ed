package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de un turno de caja. OPEN es el único estado no terminal.
const (
	EstadoAbierto = "OPEN"
	EstadoCerrado = "CLOSED"
	EstadoAnulado = "ANNULLED"
)

// TurnoCaja is a cashier's working shift.
// Totals and reconciliation fields stay NULL while the shift is OPEN: they are
// derived live from the payment ledger and only frozen once, on close.
type TurnoCaja struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Numero        string          `gorm:"type:varchar(20);not null;uniqueIndex:ux_turnos_caja_numero"`
	OperadorID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Estado        string          `gorm:"type:varchar(10);not null;default:'OPEN'"`
	MontoApertura decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	NotasApertura *string
	OpenedAt      time.Time `gorm:"not null"`
	ClosedAt      *time.Time

	// Cierre: snapshot congelado, escrito una sola vez.
	EfectivoContado  *decimal.Decimal `gorm:"type:decimal(18,2)"`
	EfectivoEsperado *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Diferencia       *decimal.Decimal `gorm:"type:decimal(18,2)"`

	TotalEfectivo      *decimal.Decimal `gorm:"type:decimal(18,2)"`
	TotalTarjeta       *decimal.Decimal `gorm:"type:decimal(18,2)"`
	TotalTransferencia *decimal.Decimal `gorm:"type:decimal(18,2)"`
	TotalSeguro        *decimal.Decimal `gorm:"type:decimal(18,2)"`
	TotalOtros         *decimal.Decimal `gorm:"type:decimal(18,2)"`
	TotalGeneral       *decimal.Decimal `gorm:"type:decimal(18,2)"`
	CantidadPagos      *int

	ResponsableCierreID     *uuid.UUID `gorm:"type:uuid"`
	ResponsableCierreNombre *string
	NotasCierre             *string

	// EventoPublicadoAt marks the lifecycle event as delivered to the queue.
	EventoPublicadoAt *time.Time
}

func (TurnoCaja) TableName() string { return "turnos_caja" }

// Abierto reports whether the shift still accepts payments.
func (t *TurnoCaja) Abierto() bool { return t.Estado == EstadoAbierto }

// Snapshot returns the frozen close-time totals, or nil for a shift that was
// never closed.
func (t *TurnoCaja) Snapshot() *Totales {
	if t.TotalGeneral == nil || t.CantidadPagos == nil {
		return nil
	}
	porMetodo := make(map[MetodoPago]decimal.Decimal, len(MetodosPago))
	for _, m := range MetodosPago {
		porMetodo[m] = decimal.Zero
	}
	set := func(m MetodoPago, v *decimal.Decimal) {
		if v != nil {
			porMetodo[m] = *v
		}
	}
	set(MetodoEfectivo, t.TotalEfectivo)
	set(MetodoTarjeta, t.TotalTarjeta)
	set(MetodoTransferencia, t.TotalTransferencia)
	set(MetodoSeguro, t.TotalSeguro)
	set(MetodoOtro, t.TotalOtros)
	return &Totales{PorMetodo: porMetodo, Total: *t.TotalGeneral, Cantidad: *t.CantidadPagos}
}

// CongelarTotales copies tot into the snapshot columns.
func (t *TurnoCaja) CongelarTotales(tot Totales) {
	get := func(m MetodoPago) *decimal.Decimal {
		v := tot.PorMetodo[m]
		return &v
	}
	t.TotalEfectivo = get(MetodoEfectivo)
	t.TotalTarjeta = get(MetodoTarjeta)
	t.TotalTransferencia = get(MetodoTransferencia)
	t.TotalSeguro = get(MetodoSeguro)
	t.TotalOtros = get(MetodoOtro)
	total := tot.Total
	t.TotalGeneral = &total
	cantidad := tot.Cantidad
	t.CantidadPagos = &cantidad
}

// PagoTurno is an immutable payment entry in a shift's ledger.
// Pagos are NEVER modified or deleted and can only be appended while the
// owning shift is OPEN.
type PagoTurno struct {
	ID      uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TurnoID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Monto   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Metodo  MetodoPago      `gorm:"type:varchar(12);not null"`
	// MetodoOriginal keeps the caller's label when Metodo is OTHER.
	MetodoOriginal    *string `gorm:"type:varchar(40)"`
	ReferenciaExterna *string `gorm:"type:varchar(80)"`
	Nota              *string
	RecordedAt        time.Time `gorm:"not null"`
}

func (PagoTurno) TableName() string { return "pagos_turno" }

// Totales is the per-method breakdown of a shift's payments.
type Totales struct {
	PorMetodo map[MetodoPago]decimal.Decimal
	Total     decimal.Decimal
	Cantidad  int
}

// Efectivo returns the CASH bucket.
func (t Totales) Efectivo() decimal.Decimal { return t.PorMetodo[MetodoEfectivo] }

// Igual compares two totals by value; decimal.Decimal cannot be compared with ==.
func (t Totales) Igual(o Totales) bool {
	if t.Cantidad != o.Cantidad || !t.Total.Equal(o.Total) {
		return false
	}
	for _, m := range MetodosPago {
		if !t.PorMetodo[m].Equal(o.PorMetodo[m]) {
			return false
		}
	}
	return true
}
