package repository

import (
	"context"
	"time"

	"BandPilot/internal/domain/models"
)

// SeriesStore persists one series per key.
type SeriesStore interface {
	// Load returns the persisted series, or an error wrapping models.ErrCacheUnavailable.
	Load(ctx context.Context, key string) (*models.Series, error)
	// Persist overwrites the whole series stored under key.
	Persist(ctx context.Context, key string, s *models.Series) error
}

// Fetcher retrieves fresh data from a remote provider.
type Fetcher interface {
	Name() string
	// Fetch returns records dated on or after start, one per date. Nil or empty means nothing new.
	Fetch(ctx context.Context, start time.Time) (*models.Series, error)
}

// Locker provides mutual exclusion across processes.
type Locker interface {
	// TryLock returns the owner token to hand back to Unlock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// DecisionPublisher journals strategy decisions and executions.
type DecisionPublisher interface {
	Publish(ctx context.Context, ev models.DecisionEvent) error
	Close() error
}

// SpotPriceSource returns the current market price of the asset.
type SpotPriceSource interface {
	LatestPrice(ctx context.Context) (float64, error)
}

type Metrics interface {
	RecordBuild(key, result string)
	RecordFetchError(key string)
	RecordLastValue(series string, v float64)
	RecordDecision(strategy, side string)
	RecordLatency(op string, seconds float64)
}
