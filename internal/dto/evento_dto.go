package dto

// Lifecycle event types published to the jobs:turnos queue.
const (
	EventoTurnoCerrado = "turno_cerrado"
	EventoTurnoAnulado = "turno_anulado"
)

// EventoTurno is the payload of a shift lifecycle event.
type EventoTurno struct {
	Tipo       string `json:"tipo"`
	TurnoID    string `json:"turno_id"`
	Numero     string `json:"numero"`
	OperadorID string `json:"operador_id"`
	Estado     string `json:"estado"`
	OcurridoAt string `json:"ocurrido_at"` // RFC 3339
}
