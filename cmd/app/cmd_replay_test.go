package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BandPilot/internal/services/bands"
	"BandPilot/internal/services/strategy"
)

type countingSource struct {
	curves, sentiments int
	err                error
}

func (s *countingSource) Curve(context.Context) (*bands.CurveFitClassifier, error) {
	s.curves++
	if s.err != nil {
		return nil, s.err
	}
	return &bands.CurveFitClassifier{}, nil
}

func (s *countingSource) Sentiment(context.Context) (*bands.ThresholdClassifier, error) {
	s.sentiments++
	if s.err != nil {
		return nil, s.err
	}
	return &bands.ThresholdClassifier{}, nil
}

func TestPickClassifier(t *testing.T) {
	tests := []struct {
		name       string
		kind       strategy.Kind
		classifier string
		curves     int
		sentiments int
		wantNil    bool
	}{
		{"dca needs none", strategy.KindDca, "price", 0, 0, true},
		{"hodl needs none", strategy.KindHodl, "sentiment", 0, 0, true},
		{"rebalance by sentiment", strategy.KindRebalance, "sentiment", 0, 1, false},
		{"weighted by price", strategy.KindWeightedDca, "price", 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &countingSource{}
			cls, err := pickClassifier(context.Background(), src, tt.kind, tt.classifier)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, cls == nil)
			assert.Equal(t, tt.curves, src.curves)
			assert.Equal(t, tt.sentiments, src.sentiments)
		})
	}
}

func TestPickClassifierErrors(t *testing.T) {
	src := &countingSource{}
	_, err := pickClassifier(context.Background(), src, strategy.KindDca, "moon")
	assert.ErrorContains(t, err, "unknown classifier")

	boom := errors.New("no sentiment data")
	src = &countingSource{err: boom}
	_, err = pickClassifier(context.Background(), src, strategy.KindRebalance, "sentiment")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, src.curves, "a failing curve fit must not block a sentiment replay")
}
