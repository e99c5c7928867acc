package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	pkgch "BandPilot/pkg/clickhouse"
	applogger "BandPilot/pkg/logger"
)

const (
	seriesTable  = "series_points"
	commitsTable = "series_commits"

	chChunkSize     = 2000
	chPersistBudget = 2 * time.Minute
)

// SeriesSchema returns the DDL for the series table in database.
func SeriesSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            key     LowCardinality(String),
            date    Date,
            pos     UInt16,
            field   LowCardinality(String),
            value   Float64,
            text    Nullable(String),
            is_text UInt8,
            version UInt64
        ) ENGINE = MergeTree
        ORDER BY (key, version, date, field)`, database, seriesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            key       LowCardinality(String),
            version   UInt64,
            rows      UInt32,
            committed DateTime
        ) ENGINE = ReplacingMergeTree(version)
        ORDER BY (key, version)`, database, commitsTable),
	}
}

// CHSeriesStore keeps one row per (key, version, date, field). Every Persist writes a
// new version and commits it last; Load reads the newest committed version, so a
// persist that dies between chunks is never visible.
type CHSeriesStore struct {
	db      *sql.DB
	table   string
	commits string
	l       *applogger.Logger
	now     func() time.Time
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)

func NewCHSeriesStore(ch *pkgch.Client, l *applogger.Logger) *CHSeriesStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSeriesStore{
		db:      ch.DB(),
		table:   ch.Database() + "." + seriesTable,
		commits: ch.Database() + "." + commitsTable,
		l:       l,
		now:     time.Now,
	}
}

type chRow struct {
	Date   time.Time
	Pos    uint16
	Field  string
	Value  float64
	Text   sql.NullString
	IsText uint8
}

func (s *CHSeriesStore) Load(ctx context.Context, key string) (*models.Series, error) {
	start := time.Now()
	key = strings.ToLower(key)
	const qtpl = `
        SELECT date, pos, field, value, text, is_text
        FROM %s
        WHERE key = ? AND version = (SELECT max(version) FROM %s WHERE key = ?)
        ORDER BY date ASC, pos ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table, s.commits), key, key)
	if err != nil {
		s.l.Error("clickhouse load_series query error", applogger.String("key", key), applogger.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	out := make([]chRow, 0, 4096)
	for rows.Next() {
		var r chRow
		if err := rows.Scan(&r.Date, &r.Pos, &r.Field, &r.Value, &r.Text, &r.IsText); err != nil {
			s.l.Error("clickhouse load_series scan error", applogger.String("key", key), applogger.Error(err))
			return nil, fmt.Errorf("%w: scan: %v", models.ErrCacheUnavailable, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", models.ErrCacheUnavailable, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s not stored", models.ErrCacheUnavailable, key)
	}
	series := seriesFromRows(out)
	s.l.Debug("clickhouse load_series ok",
		applogger.String("key", key),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return series, nil
}

// Persist ignores cancellation of ctx once it starts writing: the chunks and the
// commit row go out together or the version stays uncommitted.
func (s *CHSeriesStore) Persist(ctx context.Context, key string, series *models.Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.ToLower(key)
	version := uint64(s.now().UnixNano())
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), chPersistBudget)
	defer cancel()

	for _, st := range s.persistStatements(key, version, rowsFromSeries(series)) {
		if _, err := s.db.ExecContext(wctx, st.query, st.args...); err != nil {
			s.l.Error("clickhouse persist_series error",
				applogger.String("key", key),
				applogger.Any("version", version),
				applogger.Error(err),
			)
			return fmt.Errorf("persist %s: %w", key, err)
		}
	}

	prune := fmt.Sprintf("ALTER TABLE %s DELETE WHERE key = ? AND version < ?", s.table)
	if _, err := s.db.ExecContext(wctx, prune, key, version); err != nil {
		s.l.Warn("clickhouse prune old versions failed", applogger.String("key", key), applogger.Error(err))
	}
	return nil
}

type chStatement struct {
	query string
	args  []interface{}
}

// persistStatements returns the chunked inserts for rows followed by the commit row.
func (s *CHSeriesStore) persistStatements(key string, version uint64, rows []chRow) []chStatement {
	out := make([]chStatement, 0, len(rows)/chChunkSize+2)
	for start := 0; start < len(rows); start += chChunkSize {
		end := start + chChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, r := range rows[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			var text interface{}
			if r.Text.Valid {
				text = r.Text.String
			}
			args = append(args, key, r.Date, r.Pos, r.Field, r.Value, text, r.IsText, version)
		}
		out = append(out, chStatement{
			query: fmt.Sprintf("INSERT INTO %s (key, date, pos, field, value, text, is_text, version) VALUES %s",
				s.table, strings.Join(values, ",")),
			args: args,
		})
	}
	out = append(out, chStatement{
		query: fmt.Sprintf("INSERT INTO %s (key, version, rows, committed) VALUES (?, ?, ?, ?)", s.commits),
		args:  []interface{}{key, version, uint32(len(rows)), s.now().UTC()},
	})
	return out
}

// rowsFromSeries flattens a series; pos keeps numeric fields before text fields.
func rowsFromSeries(s *models.Series) []chRow {
	out := make([]chRow, 0, s.Len()*(len(s.Fields)+len(s.TextFields)))
	for _, p := range s.Points {
		for i, f := range s.Fields {
			out = append(out, chRow{Date: p.Date, Pos: uint16(i), Field: f, Value: p.Values[f]})
		}
		for i, f := range s.TextFields {
			r := chRow{Date: p.Date, Pos: uint16(len(s.Fields) + i), Field: f, IsText: 1}
			if t := p.Text[f]; t != nil {
				r.Text = sql.NullString{String: *t, Valid: true}
			}
			out = append(out, r)
		}
	}
	return out
}

func seriesFromRows(rows []chRow) *models.Series {
	type col struct {
		pos  uint16
		name string
		text bool
	}
	seen := map[string]col{}
	for _, r := range rows {
		if _, ok := seen[r.Field]; !ok {
			seen[r.Field] = col{pos: r.Pos, name: r.Field, text: r.IsText == 1}
		}
	}
	cols := make([]col, 0, len(seen))
	for _, c := range seen {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].pos < cols[j].pos })

	var fields, text []string
	for _, c := range cols {
		if c.text {
			text = append(text, c.name)
		} else {
			fields = append(fields, c.name)
		}
	}

	s := models.NewSeries(fields, text)
	var cur *models.Point
	for _, r := range rows {
		d := models.Day(r.Date)
		if cur == nil || !cur.Date.Equal(d) {
			s.Points = append(s.Points, models.Point{Date: d, Values: map[string]float64{}})
			cur = &s.Points[len(s.Points)-1]
		}
		if r.IsText == 1 {
			if cur.Text == nil {
				cur.Text = map[string]*string{}
			}
			if r.Text.Valid {
				t := r.Text.String
				cur.Text[r.Field] = &t
			} else {
				cur.Text[r.Field] = nil
			}
			continue
		}
		cur.Values[r.Field] = r.Value
	}
	return s
}
