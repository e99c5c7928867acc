package bands

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BandPilot/internal/domain/models"
)

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestThresholdPartition(t *testing.T) {
	c, err := NewThresholdClassifier(nil)
	require.NoError(t, err)

	tests := []struct {
		value float64
		band  int
		name  string
	}{
		{0, 0, "Extreme Fear"},
		{24.99, 0, "Extreme Fear"},
		{25, 1, "Fear"},
		{45.99, 1, "Fear"},
		{46, 2, "Neutral"},
		{54, 2, "Neutral"},
		{54.01, 3, "Greed"},
		{75, 3, "Greed"},
		{75.5, 4, "Extreme Greed"},
		{80, 4, "Extreme Greed"},
		{100, 4, "Extreme Greed"},
	}
	for _, tt := range tests {
		d, err := c.ClassifyDetails(tt.value)
		require.NoError(t, err, "value %v", tt.value)
		assert.Equal(t, tt.band, d.Index, "value %v", tt.value)
		assert.Equal(t, tt.name, d.Name, "value %v", tt.value)
	}
}

func TestThresholdOutOfRange(t *testing.T) {
	c, err := NewThresholdClassifier(nil)
	require.NoError(t, err)

	for _, v := range []float64{-0.01, 100.01, 250} {
		_, err := c.Classify(v)
		assert.True(t, errors.Is(err, models.ErrNotAvailable), "value %v", v)
	}
}

func TestThresholdEveryValueHasOneBand(t *testing.T) {
	c, err := NewThresholdClassifier(nil)
	require.NoError(t, err)

	prev := 0
	for v := 0.0; v <= 100; v += 0.25 {
		i, err := c.Classify(v)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, i, prev)
		prev = i
	}
}

func TestThresholdBandAt(t *testing.T) {
	s := models.NewSeries(nil, []string{"close_name"})
	s.AddClose(date("2024-03-01"), 20)
	s.AddClose(date("2024-03-02"), 80)

	c, err := NewThresholdClassifier(s)
	require.NoError(t, err)

	d, err := c.BandAt(date("2024-03-02"), 0)
	require.NoError(t, err)
	assert.Equal(t, models.BandDetails{Index: 4, Ordinal: "5/5", Name: "Extreme Greed", Color: "#5CBC3C", Multiplier: 0.5}, d)

	latest, err := c.BandAt(time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, d, latest)

	_, err = c.BandAt(date("2024-04-01"), 0)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestThresholdValueField(t *testing.T) {
	s := models.NewSeries([]string{"close", "volume"}, nil)
	s.Add(date("2024-03-01"), map[string]float64{"close": 90, "volume": 30}, nil)

	c, err := NewThresholdClassifier(s, WithValueField("volume"))
	require.NoError(t, err)
	d, err := c.BandAt(date("2024-03-01"), 0)
	require.NoError(t, err)
	assert.Equal(t, "Fear", d.Name)

	c, err = NewThresholdClassifier(s, WithValueField("open"))
	require.NoError(t, err)
	_, err = c.BandAt(date("2024-03-01"), 0)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestThresholdRejectsBadConfig(t *testing.T) {
	_, err := NewThresholdClassifier(nil, WithThresholds([]float64{50, 40, 100}, models.BandTable{
		Names:       []string{"a", "b", "c"},
		Colors:      []string{"1", "2", "3"},
		Multipliers: []float64{1, 1, 1},
	}))
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))

	_, err = NewThresholdClassifier(nil, WithThresholdMultipliers([]float64{1, 2}))
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))
}
