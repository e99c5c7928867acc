package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BandPilot/internal/domain/models"
)

var today = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return today }

func day(offset int) time.Time { return models.Day(today).AddDate(0, 0, offset) }

type memStore struct {
	mu       sync.Mutex
	data     map[string]*models.Series
	loadErr  error
	persists int
}

func newMemStore() *memStore { return &memStore{data: map[string]*models.Series{}} }

func (m *memStore) Load(_ context.Context, key string) (*models.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	s, ok := m.data[key]
	if !ok {
		return nil, models.ErrCacheUnavailable
	}
	return s, nil
}

func (m *memStore) Persist(_ context.Context, key string, s *models.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists++
	m.data[key] = s
	return nil
}

type stubFetcher struct {
	series *models.Series
	err    error
	calls  atomic.Int32
	starts chan time.Time
}

func (f *stubFetcher) Name() string { return "stub" }

func (f *stubFetcher) Fetch(_ context.Context, start time.Time) (*models.Series, error) {
	f.calls.Add(1)
	if f.starts != nil {
		f.starts <- start
	}
	return f.series, f.err
}

func closes(from time.Time, values ...float64) *models.Series {
	s := models.NewSeries(nil, nil)
	for i, v := range values {
		s.AddClose(from.AddDate(0, 0, i), v)
	}
	return s
}

func TestBuildFromEmptyCache(t *testing.T) {
	store := newMemStore()
	fetched := models.NewSeries(nil, nil)
	fetched.AddClose(day(-4), 10)
	fetched.AddClose(day(-1), 40)
	f := &stubFetcher{series: fetched, starts: make(chan time.Time, 1)}

	b := NewSeriesBuilder(store, WithClock(clock))
	s, err := b.Build(context.Background(), BuildRequest{Key: "BTC", Fetcher: f, RequestedStart: day(-10)})
	require.NoError(t, err)

	assert.Equal(t, day(-10), <-f.starts)
	assert.InDeltaSlice(t, []float64{10, 20, 30, 40}, s.Values(), 1e-9)
	assert.Equal(t, 1, store.persists)
	assert.Equal(t, 4, store.data["btc"].Len())
}

func TestBuildUpToDateSkipsFetch(t *testing.T) {
	store := newMemStore()
	store.data["fng"] = closes(day(-3), 1, 2, 3)
	f := &stubFetcher{}

	s, err := NewSeriesBuilder(store, WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
	require.NoError(t, err)
	assert.Equal(t, int32(0), f.calls.Load())
	assert.Equal(t, 0, store.persists)
	assert.Equal(t, 3, s.Len())
}

func TestBuildFetchesFromDayAfterCache(t *testing.T) {
	store := newMemStore()
	store.data["fng"] = closes(day(-5), 1, 2)
	f := &stubFetcher{series: closes(day(-3), 3, 4, 5), starts: make(chan time.Time, 1)}

	s, err := NewSeriesBuilder(store, WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
	require.NoError(t, err)
	assert.Equal(t, day(-3), <-f.starts)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, s.Values())
	assert.Equal(t, 1, store.persists)
}

func TestBuildFetchErrorFallsBackToCache(t *testing.T) {
	store := newMemStore()
	store.data["fng"] = closes(day(-10), 1, 2)
	f := &stubFetcher{err: models.ErrFetchFailed}

	s, err := NewSeriesBuilder(store, WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 0, store.persists)
}

func TestBuildFetchErrorWithoutCache(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"wrapped", fmt.Errorf("alternative: %w", models.ErrFetchFailed)},
		{"plain", errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stubFetcher{err: tt.err}

			_, err := NewSeriesBuilder(newMemStore(), WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
			require.Error(t, err)
			var be *models.BuildError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, models.StageFetch, be.Stage)
			assert.ErrorIs(t, err, models.ErrNoDataAvailable)
			assert.ErrorIs(t, err, models.ErrFetchFailed)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestBuildNoData(t *testing.T) {
	f := &stubFetcher{series: models.NewSeries(nil, nil)}

	_, err := NewSeriesBuilder(newMemStore(), WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
	assert.True(t, errors.Is(err, models.ErrNoDataAvailable))
}

func TestBuildDropsInvalidRows(t *testing.T) {
	fetched := models.NewSeries(nil, nil)
	fetched.AddClose(day(-4), 1)
	fetched.AddClose(day(-3), math.NaN())
	fetched.AddClose(day(-2), -5)
	fetched.AddClose(day(-1), 4)
	fetched.AddClose(day(-1), 99)

	s, err := NewSeriesBuilder(newMemStore(), WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: &stubFetcher{series: fetched}, RequestedStart: day(-4)})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4}, s.Values(), 1e-9)
}

func TestBuildDropsRowsBeforeMissingStart(t *testing.T) {
	store := newMemStore()
	store.data["fng"] = closes(day(-3), 7)
	f := &stubFetcher{series: closes(day(-4), 100, 100, 8, 9)}

	s, err := NewSeriesBuilder(store, WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9}, s.Values())
}

func TestBuildCacheErrors(t *testing.T) {
	t.Run("unavailable is empty", func(t *testing.T) {
		store := newMemStore()
		store.loadErr = models.ErrCacheUnavailable
		s, err := NewSeriesBuilder(store, WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: &stubFetcher{series: closes(day(-2), 1, 2)}})
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())
	})
	t.Run("other error fails", func(t *testing.T) {
		store := newMemStore()
		store.loadErr = errors.New("disk on fire")
		_, err := NewSeriesBuilder(store, WithClock(clock)).Build(context.Background(), BuildRequest{Key: "fng", Fetcher: &stubFetcher{}})
		var be *models.BuildError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, models.StageCache, be.Stage)
	})
}

func TestBuildFetchPolicy(t *testing.T) {
	cached := closes(day(-10), 1, 2)

	t.Run("disabled", func(t *testing.T) {
		store := newMemStore()
		store.data["fng"] = cached
		f := &stubFetcher{series: closes(day(-1), 5)}
		b := NewSeriesBuilder(store, WithClock(clock), WithFetchPolicy(FetchPolicy{Disabled: true}))

		s, err := b.Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())
		assert.Equal(t, int32(0), f.calls.Load())

		_, err = b.Build(context.Background(), BuildRequest{Key: "other", Fetcher: f})
		assert.True(t, errors.Is(err, models.ErrNoDataAvailable))
	})

	t.Run("only cache", func(t *testing.T) {
		store := newMemStore()
		store.data["fng"] = cached
		f := &stubFetcher{series: closes(day(-1), 5)}
		b := NewSeriesBuilder(store, WithClock(clock), WithFetchPolicy(FetchPolicy{OnlyCache: true}))

		_, err := b.Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
		require.NoError(t, err)
		assert.Equal(t, int32(0), f.calls.Load())

		s, err := b.Build(context.Background(), BuildRequest{Key: "other", Fetcher: f})
		require.NoError(t, err)
		assert.Equal(t, int32(1), f.calls.Load())
		assert.Equal(t, 1, s.Len())
	})
}

func TestBuildWindow(t *testing.T) {
	store := newMemStore()
	f := &stubFetcher{series: closes(day(-5), 1, 2, 3, 4, 5)}

	s, err := NewSeriesBuilder(store, WithClock(clock)).Build(context.Background(), BuildRequest{
		Key: "fng", Fetcher: f, Window: Window{From: day(-4), To: day(-2)},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, s.Values())
	assert.Equal(t, 5, store.data["fng"].Len())
}

func TestBuildSerializesSameKey(t *testing.T) {
	store := newMemStore()
	f := &stubFetcher{series: closes(day(-3), 1, 2, 3)}
	b := NewSeriesBuilder(store, WithClock(clock))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Build(context.Background(), BuildRequest{Key: "fng", Fetcher: f})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, store.persists)
}

type flakyLocker struct {
	mu       sync.Mutex
	busy     int
	err      error
	unlocked int
}

func (l *flakyLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if l.busy > 0 {
		l.busy--
		return "", false, nil
	}
	return "owner", true, nil
}

func (l *flakyLocker) Unlock(_ context.Context, _, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token != "owner" {
		return errors.New("wrong token")
	}
	l.unlocked++
	return nil
}

func TestBuildSharedLock(t *testing.T) {
	t.Run("waits for holder", func(t *testing.T) {
		lk := &flakyLocker{busy: 1}
		b := NewSeriesBuilder(newMemStore(), WithClock(clock), WithLocker(lk, time.Minute))
		_, err := b.Build(context.Background(), BuildRequest{Key: "fng", Fetcher: &stubFetcher{series: closes(day(-1), 1)}})
		require.NoError(t, err)
		assert.Equal(t, 1, lk.unlocked)
	})
	t.Run("gives up on context", func(t *testing.T) {
		lk := &flakyLocker{busy: 1000}
		b := NewSeriesBuilder(newMemStore(), WithClock(clock), WithLocker(lk, time.Minute))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := b.Build(ctx, BuildRequest{Key: "fng", Fetcher: &stubFetcher{}})
		var be *models.BuildError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, models.StageLock, be.Stage)
	})
	t.Run("backend down is ignored", func(t *testing.T) {
		lk := &flakyLocker{err: errors.New("redis down")}
		b := NewSeriesBuilder(newMemStore(), WithClock(clock), WithLocker(lk, time.Minute))
		_, err := b.Build(context.Background(), BuildRequest{Key: "fng", Fetcher: &stubFetcher{series: closes(day(-1), 1)}})
		require.NoError(t, err)
	})
}
