package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BandPilot/internal/domain/models"
)

func sentimentSeries() *models.Series {
	s := models.NewSeries([]string{models.FieldClose}, []string{fieldCloseName})
	for i, v := range []float64{20, 50, 80} {
		name := map[float64]string{20: "Extreme Fear", 50: "Neutral", 80: "Extreme Greed"}[v]
		s.Add(day(i-3), map[string]float64{models.FieldClose: v}, map[string]*string{fieldCloseName: &name})
	}
	return s
}

func priceSeries(n int) *models.Series {
	s := models.NewSeries(nil, nil)
	for t := 1; t <= n; t++ {
		s.AddClose(day(t-n-1), math.Exp(2*math.Log(10+float64(t))+1))
	}
	return s
}

type fixedSpot struct{ price float64 }

func (f fixedSpot) LatestPrice(context.Context) (float64, error) { return f.price, nil }

func newBands(t *testing.T, spot *fixedSpot) (*BandsUseCase, *stubFetcher, *stubFetcher) {
	t.Helper()
	sent := &stubFetcher{series: sentimentSeries()}
	price := &stubFetcher{series: priceSeries(200)}
	b := NewSeriesBuilder(newMemStore(), WithClock(clock))
	var uc *BandsUseCase
	if spot != nil {
		uc = NewBandsUseCase(b, sent, price, spot, BandsConfig{}, nil)
	} else {
		uc = NewBandsUseCase(b, sent, price, nil, BandsConfig{}, nil)
	}
	return uc, sent, price
}

func TestSentimentAt(t *testing.T) {
	uc, sent, _ := newBands(t, nil)
	ctx := context.Background()

	latest, err := uc.SentimentAt(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 80.0, latest.Value)
	assert.Equal(t, 4, latest.Band.Index)
	require.NotNil(t, latest.Label)
	assert.Equal(t, "Extreme Greed", *latest.Label)

	first, err := uc.SentimentAt(ctx, day(-3))
	require.NoError(t, err)
	assert.Equal(t, 0, first.Band.Index)

	zero, err := uc.SentimentAt(ctx, models.Epoch.AddDate(-1, 0, 0))
	assert.Nil(t, zero)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	assert.Equal(t, int32(1), sent.calls.Load())
}

func TestPriceAt(t *testing.T) {
	uc, _, _ := newBands(t, &fixedSpot{price: 1e9})
	ctx := context.Background()

	fromSeries, err := uc.PriceAt(ctx, day(-1), 0, false)
	require.NoError(t, err)
	assert.Equal(t, PriceFromSeries, fromSeries.Source)
	assert.InDelta(t, math.Exp(2*math.Log(210)+1), fromSeries.Price, 1e-6)

	live, err := uc.PriceAt(ctx, day(-1), 0, true)
	require.NoError(t, err)
	assert.Equal(t, PriceFromLive, live.Source)
	assert.Equal(t, 0, live.Band.Index)

	cheap, err := uc.PriceAt(ctx, day(-1), 0.0001, false)
	require.NoError(t, err)
	assert.Equal(t, PriceFromQuery, cheap.Source)
	assert.Equal(t, 8, cheap.Band.Index)

	_, err = uc.PriceAt(ctx, day(-500), 0, false)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestPriceAtLiveWithoutSpot(t *testing.T) {
	uc, _, _ := newBands(t, nil)
	_, err := uc.PriceAt(context.Background(), day(-1), 0, true)
	assert.True(t, errors.Is(err, models.ErrNotAvailable))
}

func TestCurveAt(t *testing.T) {
	uc, _, price := newBands(t, nil)

	res, err := uc.CurveAt(context.Background(), day(-1))
	require.NoError(t, err)
	require.Len(t, res.Boundaries, 10)
	for off := -2; off <= 6; off++ {
		assert.Greater(t, res.Boundaries[off], res.Boundaries[off-1])
	}

	_, err = uc.CurveAt(context.Background(), day(-2))
	require.NoError(t, err)
	assert.Equal(t, int32(1), price.calls.Load())

	uc.Invalidate()
	_, err = uc.CurveAt(context.Background(), day(-1))
	require.NoError(t, err)
	assert.Equal(t, int32(1), price.calls.Load(), "second build reads the persisted series")
}

func TestSummaryAndWarm(t *testing.T) {
	uc, _, _ := newBands(t, nil)
	ctx := context.Background()
	require.NoError(t, uc.Warm(ctx))

	sum, err := uc.Summary(ctx, day(-2))
	require.NoError(t, err)
	require.NotNil(t, sum.Sentiment)
	require.NotNil(t, sum.Price)
	assert.Nil(t, sum.Errors)
	assert.Equal(t, 50.0, sum.Sentiment.Value)

	partial, err := uc.Summary(ctx, day(-100))
	require.NoError(t, err)
	assert.Nil(t, partial.Sentiment)
	assert.Contains(t, partial.Errors, "sentiment")
}

func TestBandsBuildFailure(t *testing.T) {
	b := NewSeriesBuilder(newMemStore(), WithClock(clock))
	uc := NewBandsUseCase(b, &stubFetcher{err: models.ErrFetchFailed}, &stubFetcher{err: models.ErrFetchFailed}, nil, BandsConfig{}, nil)

	_, err := uc.Summary(context.Background(), day(-1))
	assert.True(t, errors.Is(err, models.ErrFetchFailed))
	assert.Error(t, uc.Warm(context.Background()))
}
