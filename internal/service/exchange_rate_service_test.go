package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bodega/internal/infra"
	"bodega/internal/model"
	"bodega/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentRate_LiveFetchOverwritesCache(t *testing.T) {
	cache := &stubRateCache{entry: &model.RateCacheEntry{Rate: d("30"), FetchedAt: time.Now().Add(-time.Hour)}}
	svc := service.NewExchangeRateService(&stubFetcher{rate: d("36.50")}, nil, cache)

	rate, stale, err := svc.CurrentRate(context.Background())
	require.NoError(t, err)
	assert.False(t, stale)
	assertDec(t, "36.50", rate, "rate")
	assertDec(t, "36.50", cache.entry.Rate, "cached")
	assert.Equal(t, 1, cache.saves)
}

func TestCurrentRate_FallsBackToCache(t *testing.T) {
	cache := &stubRateCache{entry: &model.RateCacheEntry{Rate: d("40.00"), FetchedAt: time.Now()}}
	svc := service.NewExchangeRateService(&stubFetcher{err: errors.New("connection refused")}, nil, cache)

	rate, stale, err := svc.CurrentRate(context.Background())
	require.NoError(t, err)
	assert.True(t, stale)
	assertDec(t, "40.00", rate, "rate")
	assert.Zero(t, cache.saves, "fallback never writes the cache")

	q, err := svc.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "connection refused", q.StaleReason)
	assert.Equal(t, "closed", q.SourceState)
	assert.Nil(t, q.RetryAt)
}

func TestCurrentRate_NoCacheIsExternalServiceError(t *testing.T) {
	svc := service.NewExchangeRateService(&stubFetcher{err: errors.New("timeout")}, nil, &stubRateCache{})

	_, _, err := svc.CurrentRate(context.Background())
	assert.ErrorIs(t, err, service.ErrExternalService)
}

func TestCurrentRate_OpenBreakerSkipsSource(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("timeout")}
	cb := infra.NewRateBreaker(infra.BreakerConfig{Failures: 2, Cooldown: time.Hour})
	cache := &stubRateCache{entry: &model.RateCacheEntry{Rate: d("40"), FetchedAt: time.Now()}}
	svc := service.NewExchangeRateService(fetcher, cb, cache)

	for i := 0; i < 4; i++ {
		_, stale, err := svc.CurrentRate(context.Background())
		require.NoError(t, err)
		assert.True(t, stale)
	}
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, infra.BreakerOpen, svc.Breaker().State())

	q, err := svc.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "open", q.SourceState)
	assert.Contains(t, q.StaleReason, "rate source suspended")
	require.NotNil(t, q.RetryAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *q.RetryAt, time.Minute)
}

func TestQuote_RoundsToStoredScale(t *testing.T) {
	cache := &stubRateCache{}
	svc := service.NewExchangeRateService(&stubFetcher{rate: d("36.12345678")}, nil, cache)

	q, err := svc.Quote(context.Background())
	require.NoError(t, err)
	assertDec(t, "36.123457", q.Rate, "rate")
	assertDec(t, "36.123457", cache.entry.Rate, "cached")
	assert.Equal(t, "closed", q.SourceState)
	assert.Empty(t, q.StaleReason)
	assert.Nil(t, q.RetryAt)
}

func TestQuote_ReportsSource(t *testing.T) {
	svc := service.NewExchangeRateService(&stubFetcher{rate: d("36")}, nil, &stubRateCache{})

	q, err := svc.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stub://rate", q.Source)
	assert.False(t, q.FetchedAt.IsZero())

	cached, err := svc.Cached(context.Background())
	require.NoError(t, err)
	assertDec(t, "36", cached.Rate, "cached")
}
