package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func strp(s string) *string { return &s }

func TestFillGapsIsTotal(t *testing.T) {
	s := NewSeries([]string{FieldClose, "volume"}, []string{"close_name"})
	s.Add(day("2024-01-01"), map[string]float64{FieldClose: 10, "volume": 1}, map[string]*string{"close_name": strp("Fear")})
	s.Add(day("2024-01-04"), map[string]float64{FieldClose: 40, "volume": 4}, map[string]*string{"close_name": strp("Greed")})
	s.Add(day("2024-01-05"), map[string]float64{FieldClose: 50, "volume": 5}, nil)

	got := s.FillGaps()

	require.Equal(t, DaysBetween(s.MinDate(), s.MaxDate())+1, got.Len())
	for i, p := range got.Points {
		assert.Equal(t, day("2024-01-01").AddDate(0, 0, i), p.Date)
		_, ok := p.Values[FieldClose]
		assert.True(t, ok, "close missing at %s", p.Date)
	}
	assert.InDelta(t, 20, got.Points[1].Values[FieldClose], 1e-9)
	assert.InDelta(t, 30, got.Points[2].Values[FieldClose], 1e-9)
	assert.InDelta(t, 3, got.Points[2].Values["volume"], 1e-9)
	assert.Nil(t, got.Points[1].Text["close_name"])
	assert.Equal(t, "Greed", *got.Points[3].Text["close_name"])
	assert.Equal(t, 3, s.Len(), "receiver must not change")
}

func TestMergeFetchedWins(t *testing.T) {
	cached := NewSeries(nil, nil)
	cached.AddClose(day("2024-01-01"), 1)
	cached.AddClose(day("2024-01-02"), 2)

	fetched := NewSeries(nil, nil)
	fetched.AddClose(day("2024-01-03"), 3)
	fetched.AddClose(day("2024-01-02"), 2.5)

	got := Merge(cached, fetched)

	require.Equal(t, 3, got.Len())
	assert.Equal(t, []float64{1, 2.5, 3}, got.Values())
	require.NoError(t, got.Validate(true))
}

func TestMergeNilSides(t *testing.T) {
	s := NewSeries(nil, nil)
	s.AddClose(day("2024-01-01"), 1)

	assert.Equal(t, 1, Merge(nil, s).Len())
	assert.Equal(t, 1, Merge(s, nil).Len())
	assert.True(t, Merge(nil, nil).Empty())
}

func TestSliceDoesNotMutate(t *testing.T) {
	s := NewSeries(nil, nil)
	for i := 0; i < 10; i++ {
		s.AddClose(day("2024-01-01").AddDate(0, 0, i), float64(i+1))
	}

	w := s.Slice(day("2024-01-03"), day("2024-01-05"))

	assert.Equal(t, []float64{3, 4, 5}, w.Values())
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, 8, s.Slice(day("2024-01-03"), time.Time{}).Len())
}

func TestIndexAndAt(t *testing.T) {
	s := NewSeries(nil, nil)
	s.AddClose(day("2024-01-01"), 1)
	s.AddClose(day("2024-01-02"), 2)

	i, ok := s.Index(day("2024-01-02").Add(13 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = s.At(day("2024-02-01"))
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *Series
		positive bool
	}{
		{
			name: "duplicate date",
			build: func() *Series {
				s := NewSeries(nil, nil)
				s.AddClose(day("2024-01-01"), 1)
				s.AddClose(day("2024-01-01"), 2)
				return s
			},
		},
		{
			name: "non positive price",
			build: func() *Series {
				s := NewSeries(nil, nil)
				s.AddClose(day("2024-01-01"), 0)
				return s
			},
			positive: true,
		},
		{
			name: "missing field",
			build: func() *Series {
				s := NewSeries([]string{FieldClose, "volume"}, nil)
				s.AddClose(day("2024-01-01"), 1)
				return s
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.build().Validate(tt.positive))
		})
	}
}

func TestBandTableDetails(t *testing.T) {
	table := BandTable{
		Names:       []string{"low", "high"},
		Colors:      []string{"#000", "#fff"},
		Multipliers: []float64{2, 0.5},
	}
	require.NoError(t, table.Check())

	d, err := table.Details(1)
	require.NoError(t, err)
	assert.Equal(t, BandDetails{Index: 1, Ordinal: "2/2", Name: "high", Color: "#fff", Multiplier: 0.5}, d)

	_, err = table.Details(2)
	assert.True(t, errors.Is(err, ErrNotAvailable))
}

func TestBuildErrorUnwraps(t *testing.T) {
	err := error(&BuildError{Key: "fng", Stage: StageFetch, Err: ErrNoDataAvailable})
	assert.True(t, errors.Is(err, ErrNoDataAvailable))
	assert.Contains(t, err.Error(), "fetch stage")
}
