package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "bandpilot/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"name":"fng","values":[1,2]}`))
	}))
	defer srv.Close()

	var out struct {
		Name   string `json:"name"`
		Values []int  `json:"values"`
	}
	c := NewClient()
	err := c.GetJSON(context.Background(), srv.URL, url.Values{"limit": {"10"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "fng", out.Name)
	assert.Equal(t, []int{1, 2}, out.Values)
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient().GetJSON(context.Background(), srv.URL, nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, "slow down", se.Body)
	assert.True(t, se.Temporary())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClientOptions(t *testing.T) {
	var seen, query string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("User-Agent")
		query = r.URL.RawQuery
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{}`)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})

	c := NewClient(WithUserAgent("fetcher/2"), WithTransport(rt))
	var out map[string]any
	require.NoError(t, c.GetJSON(context.Background(), "http://example.invalid/x?a=1", url.Values{"b": {"2"}}, &out))
	assert.Equal(t, "fetcher/2", seen)
	assert.Equal(t, "a=1&b=2", query)
}
