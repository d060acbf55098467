package service

import (
	"context"
	"errors"
	"time"

	"bodega/internal/infra"
	"bodega/internal/logger"
	"bodega/internal/model"
	"bodega/internal/money"
	"bodega/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateFetcher is the live rate source. infra.RateClient implements it.
type RateFetcher interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
	Source() string
}

// RateQuote is a rate together with where it came from. StaleReason and
// RetryAt are only set when the live fetch failed; RetryAt is when the
// suspended source will be tried again.
type RateQuote struct {
	Rate        decimal.Decimal
	Stale       bool
	FetchedAt   time.Time
	Source      string
	SourceState string
	StaleReason string
	RetryAt     *time.Time
}

// ExchangeRateService acquires the conversion rate with a cached fallback.
type ExchangeRateService interface {
	// CurrentRate tries the live source first. On failure it returns the last
	// cached rate with stale=true, or ErrExternalService if nothing is cached.
	CurrentRate(ctx context.Context) (decimal.Decimal, bool, error)
	Quote(ctx context.Context) (*RateQuote, error)
	// Cached returns the persisted rate without touching the network.
	Cached(ctx context.Context) (*RateQuote, error)
	// Breaker exposes the breaker guarding the live source.
	Breaker() *infra.RateBreaker
}

type exchangeRateService struct {
	source RateFetcher
	cb     *infra.RateBreaker
	cache  repository.RateCacheRepository
	now    func() time.Time
	log    zerolog.Logger
}

func NewExchangeRateService(source RateFetcher, cb *infra.RateBreaker, cache repository.RateCacheRepository) ExchangeRateService {
	if cb == nil {
		cb = infra.NewRateBreaker(infra.DefaultBreakerConfig())
	}
	return &exchangeRateService{
		source: source,
		cb:     cb,
		cache:  cache,
		now:    time.Now,
		log:    logger.WithComponent("rate"),
	}
}

func (s *exchangeRateService) Breaker() *infra.RateBreaker { return s.cb }

func (s *exchangeRateService) CurrentRate(ctx context.Context) (decimal.Decimal, bool, error) {
	q, err := s.Quote(ctx)
	if err != nil {
		return decimal.Zero, false, err
	}
	return q.Rate, q.Stale, nil
}

func (s *exchangeRateService) Quote(ctx context.Context) (*RateQuote, error) {
	// Rounded to the rate column so the cached value equals the quoted one.
	rate, fetchErr := s.cb.Fetch(ctx, s.source.Fetch)

	if fetchErr == nil {
		q := &RateQuote{
			Rate:        rate.Round(money.RateScale),
			FetchedAt:   s.now().UTC(),
			Source:      s.source.Source(),
			SourceState: infra.BreakerClosed.String(),
		}
		entry := &model.RateCacheEntry{Rate: q.Rate, Source: q.Source, FetchedAt: q.FetchedAt}
		if err := s.cache.Save(ctx, entry); err != nil {
			s.log.Error().Err(err).Msg("could not persist fetched rate")
		}
		return q, nil
	}

	cached, err := s.Cached(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &LedgerError{
				Op:      "CurrentRate",
				Kind:    ErrExternalService,
				Details: "live fetch failed and no cached rate exists",
				Err:     fetchErr,
			}
		}
		return nil, err
	}
	cached.Stale = true
	cached.StaleReason = fetchErr.Error()
	st := s.cb.Status()
	cached.SourceState = st.State.String()
	if !st.RetryAt.IsZero() {
		retry := st.RetryAt.UTC()
		cached.RetryAt = &retry
	}
	s.log.Warn().Err(fetchErr).
		Str("rate", cached.Rate.String()).
		Time("fetched_at", cached.FetchedAt).
		Msg("using cached exchange rate")
	return cached, nil
}

func (s *exchangeRateService) Cached(ctx context.Context) (*RateQuote, error) {
	e, err := s.cache.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("CachedRate", "rate_cache")
		}
		return nil, classify("CachedRate", "rate_cache", err)
	}
	return &RateQuote{
		Rate:        e.Rate,
		Stale:       true,
		FetchedAt:   e.FetchedAt,
		Source:      e.Source,
		SourceState: s.cb.Status().State.String(),
	}, nil
}
