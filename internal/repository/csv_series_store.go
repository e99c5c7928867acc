package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	applogger "BandPilot/pkg/logger"
)

// CSVSeriesStore keeps one ';' delimited file per key under dir.
type CSVSeriesStore struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.SeriesStore = (*CSVSeriesStore)(nil)

func NewCSVSeriesStore(dir string, l *applogger.Logger) *CSVSeriesStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVSeriesStore{dir: dir, l: l}
}

// Path returns the file backing key.
func (s *CSVSeriesStore) Path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid series key %q", key)
	}
	return filepath.Join(s.dir, strings.ToLower(key)+".csv"), nil
}

func (s *CSVSeriesStore) Load(ctx context.Context, key string) (*models.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", models.ErrCacheUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrCacheUnavailable, err)
	}
	series, err := decodeSeries(bytes.NewReader(b))
	if err != nil {
		s.l.Warn("csv series unreadable", applogger.String("path", path), applogger.Error(err))
		return nil, err
	}
	return series, nil
}

// Persist writes to a temp file in the same directory and renames it over the target.
func (s *CSVSeriesStore) Persist(ctx context.Context, key string, series *models.Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	b, err := encodeSeries(series)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	s.l.Debug("csv series persisted",
		applogger.String("path", path),
		applogger.Int("rows", series.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}
