package worker

// rate_prefetch.go
// Background goroutine that refreshes the exchange-rate cache on a ticker so
// requests rarely wait on the live source. Skips ticks while the circuit
// breaker is open.

import (
	"context"
	"time"

	"bodega/internal/infra"
	"bodega/internal/service"

	"github.com/rs/zerolog/log"
)

// RatePrefetchConfig holds the dependencies of the prefetch goroutine.
type RatePrefetchConfig struct {
	Rates    service.ExchangeRateService
	Interval time.Duration
}

// StartRatePrefetch fetches once right away and then every Interval until
// ctx is cancelled. A non-positive Interval disables it.
func StartRatePrefetch(ctx context.Context, cfg RatePrefetchConfig) {
	if cfg.Interval <= 0 || cfg.Rates == nil {
		log.Info().Msg("rate_prefetch: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("rate_prefetch: started")
		prefetchOnce(ctx, cfg.Rates)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("rate_prefetch: shutting down")
				return
			case <-ticker.C:
				prefetchOnce(ctx, cfg.Rates)
			}
		}
	}()
}

// prefetchOnce reports whether a live fetch was attempted.
func prefetchOnce(ctx context.Context, rates service.ExchangeRateService) bool {
	if rates.Breaker().State() == infra.BreakerOpen {
		log.Debug().Msg("rate_prefetch: circuit breaker is open, skipping tick")
		return false
	}

	q, err := rates.Quote(ctx)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("rate_prefetch: no rate available")
	case q.Stale:
		log.Warn().Str("rate", q.Rate.String()).Time("fetched_at", q.FetchedAt).Msg("rate_prefetch: live fetch failed, cache kept")
	default:
		log.Info().Str("rate", q.Rate.String()).Str("source", q.Source).Msg("rate_prefetch: rate refreshed")
	}
	return true
}
