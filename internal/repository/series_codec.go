package repository

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"BandPilot/internal/domain/models"
)

const (
	csvDelimiter = ';'
	csvDateCol   = "date"
	csvTextTag   = ":text"
)

// encodeSeries writes date;fields...;textfield:text... with one row per point.
// Nil text is an empty cell.
func encodeSeries(s *models.Series) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = csvDelimiter

	header := make([]string, 0, 1+len(s.Fields)+len(s.TextFields))
	header = append(header, csvDateCol)
	header = append(header, s.Fields...)
	for _, f := range s.TextFields {
		header = append(header, f+csvTextTag)
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	row := make([]string, len(header))
	for _, p := range s.Points {
		row[0] = p.Date.Format(models.DateLayout)
		for i, f := range s.Fields {
			v, ok := p.Values[f]
			if !ok {
				return nil, fmt.Errorf("date %s: missing field %s", row[0], f)
			}
			row[1+i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		for i, f := range s.TextFields {
			row[1+len(s.Fields)+i] = ""
			if t := p.Text[f]; t != nil {
				row[1+len(s.Fields)+i] = *t
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// decodeSeries parses what encodeSeries wrote. Columns tagged ":text" are text.
// Untagged columns are numeric unless some cell fails to parse, which only happens
// in files written without tags. Errors wrap models.ErrCacheUnavailable.
func decodeSeries(r io.Reader) (*models.Series, error) {
	cr := csv.NewReader(r)
	cr.Comma = csvDelimiter
	records, err := cr.ReadAll()
	if err != nil {
		return nil, corrupt(err)
	}
	if len(records) == 0 {
		return nil, corrupt(errors.New("empty file"))
	}
	header := records[0]
	if len(header) < 2 || header[0] != csvDateCol {
		return nil, corrupt(fmt.Errorf("unexpected header %v", header))
	}
	rows := records[1:]

	cols := make([]string, len(header)-1)
	numeric := make([]bool, len(cols))
	var fields, text []string
	for c, name := range header[1:] {
		if base, ok := strings.CutSuffix(name, csvTextTag); ok {
			name = base
		} else {
			numeric[c] = isNumericColumn(rows, c+1)
		}
		cols[c] = name
		if numeric[c] {
			fields = append(fields, name)
		} else {
			text = append(text, name)
		}
	}
	if len(fields) == 0 {
		return nil, corrupt(errors.New("no numeric column"))
	}

	s := models.NewSeries(fields, text)
	s.Points = make([]models.Point, 0, len(rows))
	for n, rec := range rows {
		date, err := time.Parse(models.DateLayout, rec[0])
		if err != nil {
			return nil, corrupt(fmt.Errorf("row %d: %w", n+2, err))
		}
		values := make(map[string]float64, len(fields))
		var txt map[string]*string
		for c, name := range cols {
			cell := rec[c+1]
			if numeric[c] {
				v, _ := strconv.ParseFloat(cell, 64)
				values[name] = v
				continue
			}
			if txt == nil {
				txt = make(map[string]*string, len(text))
			}
			if cell != "" {
				cell := cell
				txt[name] = &cell
			} else {
				txt[name] = nil
			}
		}
		s.Add(date, values, txt)
	}
	s.Sort()
	return s, nil
}

func isNumericColumn(rows [][]string, col int) bool {
	if len(rows) == 0 {
		return true
	}
	for _, rec := range rows {
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func corrupt(err error) error {
	return fmt.Errorf("%w: corrupt series: %v", models.ErrCacheUnavailable, err)
}
