package worker

import (
	"context"
	"encoding/json"
	"time"

	"clinicaja/internal/dto"
	"clinicaja/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const QueueTurnos = "jobs:turnos"

// Job is the envelope stored in the Redis list.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher enqueues shift lifecycle events into Redis.
// The worker pool dequeues them via BRPOP. Every push goes through the circuit
// breaker so a downed Redis fails the caller fast instead of stalling a close.
type Dispatcher struct {
	rdb *redis.Client
	cb  *infra.CircuitBreaker
}

func NewDispatcher(rdb *redis.Client, cb *infra.CircuitBreaker) *Dispatcher {
	return &Dispatcher{rdb: rdb, cb: cb}
}

// PublicarEventoTurno pushes a turno_cerrado / turno_anulado job.
func (d *Dispatcher) PublicarEventoTurno(ctx context.Context, ev dto.EventoTurno) error {
	return d.cb.Execute(func() error {
		return d.enqueue(ctx, QueueTurnos, ev.Tipo, ev)
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// JobHandler processes the payload of one job. A returned error sends the job
// to the dead letter queue.
type JobHandler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// WorkerHandlers maps job types to their handlers. A nil handler means the job
// type is acknowledged and dropped.
type WorkerHandlers struct {
	Auditoria JobHandler // turno_cerrado
}

// StartWorkerPool launches numWorkers goroutines consuming QueueTurnos.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueTurnos).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, Job{Type: "desconocido", Payload: json.RawMessage(`null`)}, "unmarshal: "+err.Error())
		return
	}

	var handler JobHandler
	switch job.Type {
	case dto.EventoTurnoCerrado:
		handler = handlers.Auditoria
	case dto.EventoTurnoAnulado:
	default:
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("unknown job type")
		SendToDLQ(ctx, rdb, queue, job, "tipo de job desconocido")
		return
	}

	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("processing job")
	if handler == nil {
		return
	}
	if err := handler.Process(ctx, job.Payload); err != nil {
		log.Error().Err(err).Str("type", job.Type).Msg("job failed")
		SendToDLQ(ctx, rdb, queue, job, err.Error())
	}
}
