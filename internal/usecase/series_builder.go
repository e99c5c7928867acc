package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	applogger "BandPilot/pkg/logger"
	"BandPilot/pkg/metrics"
)

// FetchPolicy controls when the builder may call a provider.
type FetchPolicy struct {
	// Disabled never fetches.
	Disabled bool
	// OnlyCache skips fetching whenever a cached series exists.
	OnlyCache bool
}

// Window bounds the returned series. Zero bounds are open.
type Window struct {
	From time.Time
	To   time.Time
}

type BuildRequest struct {
	Key            string
	Fetcher        domrepo.Fetcher
	RequestedStart time.Time
	Window         Window
}

// SeriesBuilder turns a persisted series plus fresh provider data into a gap free daily series.
// Builds of the same key are serialized in process, and across processes when a Locker is set.
type SeriesBuilder struct {
	store   domrepo.SeriesStore
	locker  domrepo.Locker
	lockTTL time.Duration
	policy  FetchPolicy
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

type BuilderOption func(*SeriesBuilder)

// WithLocker adds a cross-process lock held for at most ttl.
func WithLocker(l domrepo.Locker, ttl time.Duration) BuilderOption {
	return func(b *SeriesBuilder) {
		b.locker = l
		b.lockTTL = ttl
	}
}

func WithFetchPolicy(p FetchPolicy) BuilderOption {
	return func(b *SeriesBuilder) { b.policy = p }
}

func WithBuildMetrics(m domrepo.Metrics) BuilderOption {
	return func(b *SeriesBuilder) { b.metrics = m }
}

func WithBuildLogger(l *applogger.Logger) BuilderOption {
	return func(b *SeriesBuilder) { b.l = l }
}

// WithClock sets what "today" is.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *SeriesBuilder) { b.now = now }
}

func NewSeriesBuilder(store domrepo.SeriesStore, opts ...BuilderOption) *SeriesBuilder {
	b := &SeriesBuilder{
		store:   store,
		lockTTL: 2 * time.Minute,
		metrics: metrics.Nop{},
		l:       applogger.Nop(),
		now:     time.Now,
		locks:   make(map[string]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

const lockRetry = 200 * time.Millisecond

func (b *SeriesBuilder) Build(ctx context.Context, req BuildRequest) (*models.Series, error) {
	started := time.Now()
	key := strings.ToLower(req.Key)
	if key == "" {
		return nil, &models.BuildError{Stage: models.StageValidate, Err: fmt.Errorf("empty key: %w", models.ErrInvalidConfiguration)}
	}
	l := b.l.With(applogger.String("key", key))

	unlock, err := b.lock(ctx, key, l)
	if err != nil {
		b.metrics.RecordBuild(key, "error")
		return nil, &models.BuildError{Key: key, Stage: models.StageLock, Err: err}
	}
	defer unlock()

	series, result, err := b.build(ctx, key, req, l)
	b.metrics.RecordLatency("series_build", time.Since(started).Seconds())
	if err != nil {
		b.metrics.RecordBuild(key, "error")
		l.Error("series build failed", applogger.Error(err))
		return nil, err
	}
	b.metrics.RecordBuild(key, result)
	if last, ok := series.Last(); ok {
		b.metrics.RecordLastValue(key, last.Values[series.Primary()])
	}
	l.Info("series built",
		applogger.String("result", result),
		applogger.Int("rows", series.Len()),
		applogger.Date("max_date", series.MaxDate()),
		applogger.Duration("duration_ms", time.Since(started)),
	)
	return series.Slice(req.Window.From, req.Window.To), nil
}

func (b *SeriesBuilder) build(ctx context.Context, key string, req BuildRequest, l *applogger.Logger) (*models.Series, string, error) {
	fail := func(stage models.BuildStage, err error) (*models.Series, string, error) {
		return nil, "", &models.BuildError{Key: key, Stage: stage, Err: err}
	}

	cached, err := b.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, models.ErrCacheUnavailable) {
			return fail(models.StageCache, err)
		}
		l.Warn("series cache unavailable", applogger.Error(err))
		cached = nil
	}

	today := models.Day(b.now())
	missing := models.Epoch
	switch {
	case !cached.Empty():
		missing = cached.MaxDate().AddDate(0, 0, 1)
	case !req.RequestedStart.IsZero():
		missing = models.Day(req.RequestedStart)
	}

	result := "fetched"
	var fetched *models.Series
	switch {
	case b.policy.Disabled:
		result = "cached"
		l.Debug("fetch disabled")
	case b.policy.OnlyCache && !cached.Empty():
		result = "cached"
		l.Debug("fetch skipped, only cache")
	case !missing.Before(today):
		result = "cached"
		l.Debug("series up to date", applogger.Date("missing_start", missing))
	case req.Fetcher == nil:
		result = "cached"
		l.Warn("no fetcher configured")
	default:
		fetched, err = req.Fetcher.Fetch(ctx, missing)
		if err != nil {
			b.metrics.RecordFetchError(key)
			if cached.Empty() {
				if !errors.Is(err, models.ErrFetchFailed) {
					err = fmt.Errorf("%w: %w", models.ErrFetchFailed, err)
				}
				return fail(models.StageFetch, fmt.Errorf("%w: %w", models.ErrNoDataAvailable, err))
			}
			l.Warn("fetch failed, using cache",
				applogger.String("provider", req.Fetcher.Name()),
				applogger.Date("missing_start", missing),
				applogger.Error(err),
			)
			result = "stale"
			fetched = nil
		}
	}

	fetched = b.clean(fetched, missing, l)
	if cached.Empty() && fetched.Empty() {
		return fail(models.StageFetch, models.ErrNoDataAvailable)
	}
	if fetched.Empty() && result == "fetched" {
		result = "cached"
	}

	merged := models.Merge(cached, fetched).FillGaps()
	if err := merged.Validate(true); err != nil {
		return fail(models.StageValidate, err)
	}

	if cached.Empty() || merged.MaxDate().After(cached.MaxDate()) {
		if err := b.store.Persist(ctx, key, merged); err != nil {
			return fail(models.StagePersist, err)
		}
	}
	return merged, result, nil
}

// clean keeps fetched rows dated on or after start, one per date, with finite values
// and a positive primary field.
func (b *SeriesBuilder) clean(fetched *models.Series, start time.Time, l *applogger.Logger) *models.Series {
	if fetched.Empty() {
		return nil
	}
	out := models.NewSeries(fetched.Fields, fetched.TextFields)
	seen := make(map[time.Time]bool, fetched.Len())
	primary := fetched.Primary()
	dropped := 0
	for _, p := range fetched.Points {
		d := models.Day(p.Date)
		if d.Before(start) || seen[d] {
			dropped++
			continue
		}
		if !validPoint(p, fetched.Fields, primary) {
			dropped++
			continue
		}
		seen[d] = true
		p.Date = d
		out.Points = append(out.Points, p)
	}
	out.Sort()
	if dropped > 0 {
		l.Warn("fetched rows dropped", applogger.Int("dropped", dropped), applogger.Int("kept", out.Len()))
	}
	return out
}

func validPoint(p models.Point, fields []string, primary string) bool {
	for _, f := range fields {
		v, ok := p.Values[f]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Values[primary] > 0
}

// lock takes the in-process lock for key and then, if configured, the shared one.
// A failing shared lock backend is logged and ignored.
func (b *SeriesBuilder) lock(ctx context.Context, key string, l *applogger.Logger) (func(), error) {
	sem := b.keyLock(key)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if b.locker == nil {
		return func() { sem.Release(1) }, nil
	}

	for {
		token, ok, err := b.locker.TryLock(ctx, key, b.lockTTL)
		if err != nil {
			l.Warn("shared build lock unavailable", applogger.Error(err))
			return func() { sem.Release(1) }, nil
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := b.locker.Unlock(ctx, key, token); err != nil {
					l.Warn("shared build unlock failed", applogger.Error(err))
				}
				sem.Release(1)
			}, nil
		}
		t := time.NewTimer(lockRetry)
		select {
		case <-ctx.Done():
			t.Stop()
			sem.Release(1)
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (b *SeriesBuilder) keyLock(key string) *semaphore.Weighted {
	b.mu.Lock()
	defer b.mu.Unlock()
	sem, ok := b.locks[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		b.locks[key] = sem
	}
	return sem
}
