package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BandPilot/internal/domain/models"
	"BandPilot/pkg/cache"
)

func strp(s string) *string { return &s }

func sampleSeries() *models.Series {
	s := models.NewSeries([]string{"close", "volume"}, []string{"close_name"})
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.Add(d, map[string]float64{"close": 25, "volume": 0.125}, map[string]*string{"close_name": strp("Fear")})
	s.Add(d.AddDate(0, 0, 1), map[string]float64{"close": 33.5, "volume": 1e-7}, map[string]*string{"close_name": nil})
	s.Add(d.AddDate(0, 0, 2), map[string]float64{"close": 61234.123456789, "volume": 3}, map[string]*string{"close_name": strp("Greed; very")})
	return s
}

func TestCSVStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCSVSeriesStore(t.TempDir(), nil)

	in := sampleSeries()
	require.NoError(t, store.Persist(ctx, "FNG", in))

	out, err := store.Load(ctx, "fng")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCSVStoreFileLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCSVSeriesStore(dir, nil)

	s := models.NewSeries(nil, nil)
	s.AddClose(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 42000.5)
	require.NoError(t, store.Persist(ctx, "btc", s))

	b, err := os.ReadFile(filepath.Join(dir, "btc.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date;close\n2024-01-01;42000.5\n", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCSVStoreNumericLookingText(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCSVSeriesStore(dir, nil)

	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := models.NewSeries(nil, []string{"label"})
	for i, v := range []float64{1, 2, 3} {
		in.Add(d.AddDate(0, 0, i), map[string]float64{"close": v}, map[string]*string{"label": strp("42")})
	}
	require.NoError(t, store.Persist(ctx, "lbl", in))

	b, err := os.ReadFile(filepath.Join(dir, "lbl.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "date;close;label:text\n")

	out, err := store.Load(ctx, "lbl")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	fetched := models.NewSeries(nil, []string{"label"})
	fetched.Add(d.AddDate(0, 0, 3), map[string]float64{"close": 4}, map[string]*string{"label": strp("43")})
	assert.NoError(t, models.Merge(out, fetched).Validate(true))
}

func TestCSVStoreHeaderOnly(t *testing.T) {
	ctx := context.Background()
	store := NewCSVSeriesStore(t.TempDir(), nil)

	require.NoError(t, store.Persist(ctx, "empty", models.NewSeries(nil, []string{"close_name"})))
	out, err := store.Load(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, []string{"close"}, out.Fields)
	assert.Equal(t, []string{"close_name"}, out.TextFields)
	assert.True(t, out.Empty())
}

func TestCSVStoreUntaggedTextColumn(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCSVSeriesStore(dir, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.csv"), []byte("date;close;close_name\n2024-01-01;20;Fear\n"), 0o644))
	out, err := store.Load(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, []string{"close"}, out.Fields)
	assert.Equal(t, []string{"close_name"}, out.TextFields)
}

func TestCSVStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCSVSeriesStore(dir, nil)

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrCacheUnavailable)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("when;close\nx;1\n"), 0o644))
	_, err = store.Load(ctx, "bad")
	assert.ErrorIs(t, err, models.ErrCacheUnavailable)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.csv"), []byte("date;close\n2024-01-01;1;2\n"), 0o644))
	_, err = store.Load(ctx, "short")
	assert.ErrorIs(t, err, models.ErrCacheUnavailable)
}

func TestCSVStoreRejectsPathKeys(t *testing.T) {
	store := NewCSVSeriesStore(t.TempDir(), nil)
	for _, key := range []string{"", "../etc", "a/b"} {
		_, err := store.Path(key)
		assert.Error(t, err, key)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewRedisSeriesStore(mc)

	_, err := store.Load(ctx, "btc")
	assert.ErrorIs(t, err, models.ErrCacheUnavailable)

	in := sampleSeries()
	require.NoError(t, store.Persist(ctx, "BTC", in))
	ok, err := mc.Exists(ctx, "series:btc")
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := store.Load(ctx, "btc")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCacheLocker(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	l := NewCacheLocker(mc)

	token, ok, err := l.TryLock(ctx, "fng", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = l.TryLock(ctx, "fng", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, l.Unlock(ctx, "fng", "other"), cache.ErrLockNotHeld)
	require.NoError(t, l.Unlock(ctx, "fng", token))
}

func TestClickHouseRowsRoundTrip(t *testing.T) {
	in := sampleSeries()
	rows := rowsFromSeries(in)
	assert.Len(t, rows, 9)
	assert.Equal(t, in, seriesFromRows(rows))
}

func TestClickHousePersistCommitsLast(t *testing.T) {
	s := &CHSeriesStore{
		table:   "db." + seriesTable,
		commits: "db." + commitsTable,
		now:     func() time.Time { return time.Unix(0, 7) },
	}
	rows := make([]chRow, chChunkSize*2+1)
	stmts := s.persistStatements("fng", 7, rows)

	require.Len(t, stmts, 4)
	for _, st := range stmts[:3] {
		assert.Contains(t, st.query, "INSERT INTO db.series_points")
		assert.Equal(t, uint64(7), st.args[len(st.args)-1])
	}
	assert.Len(t, stmts[0].args, chChunkSize*8)
	assert.Len(t, stmts[2].args, 8)

	commit := stmts[3]
	assert.Contains(t, commit.query, "INSERT INTO db.series_commits")
	assert.Equal(t, []interface{}{"fng", uint64(7), uint32(len(rows)), time.Unix(0, 7).UTC()}, commit.args)
}

func TestClickHouseSchemaKeepsVersionsApart(t *testing.T) {
	ddl := SeriesSchema("bp")
	require.Len(t, ddl, 3)
	assert.Contains(t, ddl[1], "ORDER BY (key, version, date, field)")
	assert.NotContains(t, ddl[1], "ReplacingMergeTree")
	assert.Contains(t, ddl[2], "bp.series_commits")
}
