// Package provider fetches daily series from public market data APIs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"BandPilot/internal/domain/models"
	"BandPilot/internal/service/ratelimit"
	pkghttp "BandPilot/pkg/http"
	applogger "BandPilot/pkg/logger"
)

// Options are shared by every provider.
type Options struct {
	Client      *pkghttp.Client
	Limiter     *ratelimit.Limiter
	RatePerSec  float64
	Burst       float64
	MaxFailures uint32
	OpenTimeout time.Duration
	Logger      *applogger.Logger
	// Now is the provider's clock. Nil means time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = pkghttp.NewClient()
	}
	if o.Limiter == nil {
		o.Limiter = ratelimit.New()
	}
	if o.RatePerSec <= 0 {
		o.RatePerSec = 1
	}
	if o.Burst < 1 {
		o.Burst = 1
	}
	if o.MaxFailures == 0 {
		o.MaxFailures = 3
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = time.Minute
	}
	if o.Logger == nil {
		o.Logger = applogger.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// guard applies the rate limit and circuit breaker around one provider call.
type guard struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	rate    float64
	burst   float64
	l       *applogger.Logger
}

func newGuard(name string, o Options) *guard {
	l := o.Logger.With(applogger.String("provider", name))
	st := gobreaker.Settings{
		Name:    name,
		Timeout: o.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the provider
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("provider circuit state change",
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &guard{
		name:    name,
		cb:      gobreaker.NewCircuitBreaker(st),
		limiter: o.Limiter,
		rate:    o.RatePerSec,
		burst:   o.Burst,
		l:       l,
	}
}

// do runs fn; every failure wraps models.ErrFetchFailed.
func (g *guard) do(ctx context.Context, fn func() error) error {
	if err := g.limiter.Wait(ctx, g.name, g.burst, g.rate); err != nil {
		return fmt.Errorf("%s rate limit: %w: %w", g.name, models.ErrFetchFailed, err)
	}
	start := time.Now()
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		g.l.Warn("provider fetch failed", applogger.Error(err), applogger.Duration("duration_ms", time.Since(start)))
		return fmt.Errorf("%s fetch: %w: %w", g.name, models.ErrFetchFailed, err)
	}
	g.l.Debug("provider fetch ok", applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// keepFrom drops points before start and repeated dates, keeping the first of each.
func keepFrom(s *models.Series, start time.Time) *models.Series {
	out := models.NewSeries(s.Fields, s.TextFields)
	seen := make(map[time.Time]bool, s.Len())
	start = models.Day(start)
	for _, p := range s.Points {
		if p.Date.Before(start) || seen[p.Date] {
			continue
		}
		seen[p.Date] = true
		out.Points = append(out.Points, p)
	}
	out.Sort()
	return out
}
