package service

import (
	"time"

	"BandPilot/internal/domain/models"
)

// BandClassifier maps a price at a date to a band.
type BandClassifier interface {
	// K is the number of bands.
	K() int
	// BandAt classifies price at date. A zero date means the latest date of the series.
	// Classifiers that read their own series ignore price.
	BandAt(date time.Time, price float64) (models.BandDetails, error)
	// Multipliers returns the default per-band weights.
	Multipliers() []float64
	Describe() string
}
