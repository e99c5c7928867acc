package models

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheUnavailable means the persisted series is absent or unreadable. Callers treat it as an empty cache.
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrNoDataAvailable  = errors.New("no data available")
	// ErrNotFound is returned for a date outside the classified series.
	ErrNotFound = errors.New("not found")
	// ErrNotAvailable is returned for a value outside the classifier's domain.
	ErrNotAvailable         = errors.New("not available")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrFitFailed            = errors.New("fit failed")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUnknownOrder         = errors.New("unknown order")
)

// BuildStage names the step of a series build that failed.
type BuildStage string

const (
	StageCache    BuildStage = "cache"
	StageFetch    BuildStage = "fetch"
	StageValidate BuildStage = "validate"
	StagePersist  BuildStage = "persist"
	StageLock     BuildStage = "lock"
)

// BuildError reports which stage of a series build failed.
type BuildError struct {
	Key   string
	Stage BuildStage
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %s stage: %v", e.Key, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
