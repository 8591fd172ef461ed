package model

import "strings"

// MetodoPago is the channel a payment came in through. The set is closed for
// bucketing purposes: anything unrecognised lands in MetodoOtro, and the
// original label travels alongside it (see NormalizarMetodo).
type MetodoPago string

const (
	MetodoEfectivo      MetodoPago = "CASH"
	MetodoTarjeta       MetodoPago = "CARD"
	MetodoTransferencia MetodoPago = "TRANSFER"
	MetodoSeguro        MetodoPago = "INSURANCE"
	MetodoOtro          MetodoPago = "OTHER"
)

// MetodosPago lists every bucket in a stable order.
var MetodosPago = []MetodoPago{
	MetodoEfectivo,
	MetodoTarjeta,
	MetodoTransferencia,
	MetodoSeguro,
	MetodoOtro,
}

var aliasMetodo = map[string]MetodoPago{
	"CASH":          MetodoEfectivo,
	"EFECTIVO":      MetodoEfectivo,
	"CARD":          MetodoTarjeta,
	"TARJETA":       MetodoTarjeta,
	"DEBITO":        MetodoTarjeta,
	"DÉBITO":        MetodoTarjeta,
	"CREDITO":       MetodoTarjeta,
	"CRÉDITO":       MetodoTarjeta,
	"TRANSFER":      MetodoTransferencia,
	"TRANSFERENCIA": MetodoTransferencia,
	"INSURANCE":     MetodoSeguro,
	"SEGURO":        MetodoSeguro,
	"OBRA_SOCIAL":   MetodoSeguro,
	"PREPAGA":       MetodoSeguro,
	"OTHER":         MetodoOtro,
	"OTRO":          MetodoOtro,
}

// MetodoNormalizado is the result of normalising a raw method label.
// Original is only set for the OTHER variant and holds the label as received.
type MetodoNormalizado struct {
	Metodo   MetodoPago
	Original *string
}

// MaxLargoMetodoOriginal is the width of pagos_turno.metodo_original, in runes.
const MaxLargoMetodoOriginal = 40

// NormalizarMetodo maps a free-form label onto a bucket. It never fails: overlong labels are cut to
// MaxLargoMetodoOriginal runes.
func NormalizarMetodo(raw string) MetodoNormalizado {
	clave := strings.ToUpper(strings.TrimSpace(raw))
	clave = strings.ReplaceAll(clave, " ", "_")
	if m, ok := aliasMetodo[clave]; ok {
		return MetodoNormalizado{Metodo: m}
	}
	out := MetodoNormalizado{Metodo: MetodoOtro}
	if label := strings.TrimSpace(raw); label != "" {
		if r := []rune(label); len(r) > MaxLargoMetodoOriginal {
			label = strings.TrimSpace(string(r[:MaxLargoMetodoOriginal]))
		}
		out.Original = &label
	}
	return out
}

// Bucket returns the bucket a stored method value belongs to. Legacy rows with
// values outside the known set are counted as OTHER.
func (m MetodoPago) Bucket() MetodoPago {
	switch m {
	case MetodoEfectivo, MetodoTarjeta, MetodoTransferencia, MetodoSeguro:
		return m
	default:
		return MetodoOtro
	}
}
