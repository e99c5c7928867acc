package models

import "fmt"

// BandDetails describes one discrete band of a classifier.
type BandDetails struct {
	Index      int     `json:"band_index"`
	Ordinal    string  `json:"ordinal"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Multiplier float64 `json:"multiplier"`
}

// BandTable holds the parallel name/color/multiplier columns of a classifier.
type BandTable struct {
	Names       []string
	Colors      []string
	Multipliers []float64
}

// K is the number of bands.
func (t BandTable) K() int { return len(t.Names) }

// Details returns the band at index i, or ErrNotAvailable when out of range.
func (t BandTable) Details(i int) (BandDetails, error) {
	if i < 0 || i >= t.K() {
		return BandDetails{}, fmt.Errorf("band %d: %w", i, ErrNotAvailable)
	}
	return BandDetails{
		Index:      i,
		Ordinal:    fmt.Sprintf("%d/%d", i+1, t.K()),
		Name:       t.Names[i],
		Color:      t.Colors[i],
		Multiplier: t.Multipliers[i],
	}, nil
}

// WithMultipliers returns a copy of t using m as multiplier column.
func (t BandTable) WithMultipliers(m []float64) BandTable {
	t.Multipliers = append([]float64(nil), m...)
	return t
}

// Check verifies the columns are the same length.
func (t BandTable) Check() error {
	if t.K() == 0 || len(t.Colors) != t.K() || len(t.Multipliers) != t.K() {
		return fmt.Errorf("band table columns %d/%d/%d: %w", len(t.Names), len(t.Colors), len(t.Multipliers), ErrInvalidConfiguration)
	}
	return nil
}
