package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BandPilot/internal/domain/models"
)

var today = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

func opts() Options {
	return Options{RatePerSec: 1000, Burst: 1000, Now: func() time.Time { return today }}
}

func day(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func TestAlternativeFetch(t *testing.T) {
	limits := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limits <- r.URL.Query().Get("limit")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		// newest first, like the real API; 1709856000 = 2024-03-08, 1709942400 = 2024-03-09
		_, _ = w.Write([]byte(`{"name":"Fear and Greed Index","data":[
			{"value":"79","value_classification":"Extreme Greed","timestamp":"1709942400"},
			{"value":"0","value_classification":"broken","timestamp":"1709900000"},
			{"value":"54","value_classification":"Neutral","timestamp":"1709856000"},
			{"value":"40","value_classification":"Fear","timestamp":"1709769600"}
		],"metadata":{"error":null}}`))
	}))
	defer srv.Close()

	a := NewAlternative(srv.URL, opts())
	s, err := a.Fetch(context.Background(), day("2024-03-08"))
	require.NoError(t, err)
	assert.Equal(t, "3", <-limits)

	require.Equal(t, 2, s.Len())
	assert.Equal(t, day("2024-03-08"), s.Points[0].Date)
	assert.Equal(t, 54.0, s.Points[0].Values["close"])
	assert.Equal(t, "Neutral", *s.Points[0].Text[FieldCloseName])
	assert.Equal(t, 79.0, s.Points[1].Values["close"])
	assert.Equal(t, []string{FieldCloseName}, s.TextFields)
}

func TestAlternativeMetadataError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[],"metadata":{"error":"limit too large"}}`))
	}))
	defer srv.Close()

	_, err := NewAlternative(srv.URL, opts()).Fetch(context.Background(), time.Time{})
	assert.ErrorIs(t, err, models.ErrFetchFailed)
	assert.ErrorContains(t, err, "limit too large")
}

func TestNasdaqFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2024-03-07", q.Get("start_date"))
		assert.Equal(t, "asc", q.Get("order"))
		assert.Equal(t, "secret", q.Get("api_key"))
		_, _ = w.Write([]byte(`{"dataset_data":{"column_names":["Date","Value"],"data":[
			["2024-03-06", 66000.5],
			["2024-03-07", 67000.25],
			["2024-03-08", 0],
			["2024-03-08", null],
			["2024-03-09", 68000]
		]}}`))
	}))
	defer srv.Close()

	n := NewNasdaq(srv.URL, "secret", opts())
	s, err := n.Fetch(context.Background(), day("2024-03-07"))
	require.NoError(t, err)
	assert.Equal(t, []float64{67000.25, 68000}, s.Values())
	assert.Equal(t, day("2024-03-09"), s.MaxDate())
}

func TestNasdaqSkipsToday(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	s, err := NewNasdaq(srv.URL, "", opts()).Fetch(context.Background(), today)
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestCircuitOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	o := opts()
	o.MaxFailures = 2
	n := NewNasdaq(srv.URL, "", o)

	for i := 0; i < 2; i++ {
		_, err := n.Fetch(context.Background(), time.Time{})
		assert.ErrorIs(t, err, models.ErrFetchFailed)
	}
	_, err := n.Fetch(context.Background(), time.Time{})
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestKeepFrom(t *testing.T) {
	s := models.NewSeries(nil, nil)
	s.AddClose(day("2024-01-03"), 3)
	s.AddClose(day("2024-01-01"), 1)
	s.AddClose(day("2024-01-02"), 2)
	s.AddClose(day("2024-01-02"), 20)

	out := keepFrom(s, day("2024-01-02"))
	assert.Equal(t, []float64{2, 3}, out.Values())
}
