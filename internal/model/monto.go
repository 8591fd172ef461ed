package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DecimalesMonto is the scale of every money column.
const DecimalesMonto = 2

var (
	// MontoMaximo is the largest single amount a NUMERIC(12,2) column holds.
	MontoMaximo = decimal.RequireFromString("9999999999.99")
	// TotalTurnoMaximo caps the sum of a shift's payments. The total and
	// variance columns are NUMERIC(18,2); the gap to their range absorbs
	// payments accepted concurrently near the cap.
	TotalTurnoMaximo = decimal.RequireFromString("999999999999999.99")
)

// ValidarMonto rejects amounts the money columns would round or overflow.
// Trailing zeros are fine: 10.500 is 10.50.
func ValidarMonto(campo string, m, maximo decimal.Decimal) error {
	if !m.Equal(m.Round(DecimalesMonto)) {
		return fmt.Errorf("%s admite a lo sumo %d decimales: %w", campo, DecimalesMonto, ErrValidacion)
	}
	if m.Abs().GreaterThan(maximo) {
		return fmt.Errorf("%s supera el máximo de %s: %w", campo, maximo.StringFixed(DecimalesMonto), ErrValidacion)
	}
	return nil
}
