package worker

// retry_cron.go
// Background goroutine that periodically republishes lifecycle events of
// shifts that reached a terminal state while the queue was unreachable
// (evento_publicado_at IS NULL). Uses the circuit breaker to avoid hammering
// a downed Redis.

import (
	"context"
	"time"

	"clinicaja/internal/infra"
	"clinicaja/internal/repository"
	"clinicaja/internal/service"

	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 20
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	TurnoRepo  repository.TurnoRepository
	Publicador service.PublicadorEventos
	CB         *infra.CircuitBreaker
	Now        func() time.Time
}

// StartRetryCron launches a background goroutine that ticks every 30s and
// republishes pending events. It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

// processRetries returns how many events were published.
func processRetries(ctx context.Context, cfg RetryCronConfig) int {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return 0
	}

	turnos, err := cfg.TurnoRepo.ListSinPublicar(ctx, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query unpublished shifts")
		return 0
	}
	if len(turnos) == 0 {
		return 0
	}

	log.Info().Int("count", len(turnos)).Msg("retry_cron: republishing shift events")

	publicados := 0
	for i := range turnos {
		t := &turnos[i]

		// the breaker may have tripped mid-batch
		if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			break
		}

		ev := service.NuevoEventoTurno(t)
		if err := cfg.Publicador.PublicarEventoTurno(ctx, ev); err != nil {
			log.Warn().Err(err).Str("turno_id", ev.TurnoID).Msg("retry_cron: publish failed")
			continue
		}
		if err := cfg.TurnoRepo.MarcarPublicado(ctx, t.ID, cfg.Now()); err != nil {
			log.Error().Err(err).Str("turno_id", ev.TurnoID).Msg("retry_cron: failed to mark event published")
			continue
		}
		publicados++
	}
	return publicados
}
