package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the calendar date format used by caches and providers.
const DateLayout = "2006-01-02"

// FieldClose is the primary value field of every series.
const FieldClose = "close"

// Epoch is where a series starts when nothing is cached or requested.
var Epoch = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(Day(b).Sub(Day(a)).Hours() / 24))
}

// Point is one calendar day of a series.
type Point struct {
	Date   time.Time
	Values map[string]float64
	Text   map[string]*string
}

// Value returns the numeric field or false when absent.
func (p Point) Value(field string) (float64, bool) {
	v, ok := p.Values[field]
	return v, ok
}

// Series is a date ordered daily series. Fields[0] is the primary value.
type Series struct {
	Fields     []string
	TextFields []string
	Points     []Point
}

// NewSeries creates an empty series with the given field layout.
func NewSeries(fields, textFields []string) *Series {
	if len(fields) == 0 {
		fields = []string{FieldClose}
	}
	return &Series{
		Fields:     append([]string(nil), fields...),
		TextFields: append([]string(nil), textFields...),
	}
}

// Add appends a point. Callers add in date order or call Sort.
func (s *Series) Add(date time.Time, values map[string]float64, text map[string]*string) {
	s.Points = append(s.Points, Point{Date: Day(date), Values: values, Text: text})
}

// AddClose appends a point carrying only the primary value.
func (s *Series) AddClose(date time.Time, v float64) {
	s.Add(date, map[string]float64{s.Primary(): v}, nil)
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

func (s *Series) Empty() bool { return s.Len() == 0 }

func (s *Series) Primary() string {
	if s == nil || len(s.Fields) == 0 {
		return FieldClose
	}
	return s.Fields[0]
}

func (s *Series) MinDate() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Points[0].Date
}

func (s *Series) MaxDate() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// Index returns the position of date, or false when absent.
func (s *Series) Index(date time.Time) (int, bool) {
	if s.Empty() {
		return 0, false
	}
	d := Day(date)
	i := sort.Search(len(s.Points), func(i int) bool { return !s.Points[i].Date.Before(d) })
	if i < len(s.Points) && s.Points[i].Date.Equal(d) {
		return i, true
	}
	return 0, false
}

// At returns the point at date.
func (s *Series) At(date time.Time) (Point, bool) {
	i, ok := s.Index(date)
	if !ok {
		return Point{}, false
	}
	return s.Points[i], true
}

// Last returns the newest point.
func (s *Series) Last() (Point, bool) {
	if s.Empty() {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Values returns the primary field of every point in order.
func (s *Series) Values() []float64 {
	out := make([]float64, s.Len())
	f := s.Primary()
	for i, p := range s.Points {
		out[i] = p.Values[f]
	}
	return out
}

// Slice returns the points within [from, to]. Zero bounds are open. The receiver is untouched.
func (s *Series) Slice(from, to time.Time) *Series {
	out := NewSeries(s.Fields, s.TextFields)
	for _, p := range s.Points {
		if !from.IsZero() && p.Date.Before(Day(from)) {
			continue
		}
		if !to.IsZero() && p.Date.After(Day(to)) {
			break
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// Sort orders points by date ascending.
func (s *Series) Sort() {
	sort.SliceStable(s.Points, func(i, j int) bool { return s.Points[i].Date.Before(s.Points[j].Date) })
}

// Validate checks ordering, uniqueness and that every numeric field is finite.
// With positive set the primary field must also be > 0.
func (s *Series) Validate(positive bool) error {
	primary := s.Primary()
	for i, p := range s.Points {
		if i > 0 && !p.Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("date %s out of order", p.Date.Format(DateLayout))
		}
		for _, f := range s.Fields {
			v, ok := p.Values[f]
			if !ok {
				return fmt.Errorf("date %s: missing field %s", p.Date.Format(DateLayout), f)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("date %s: field %s not finite", p.Date.Format(DateLayout), f)
			}
		}
		if positive && p.Values[primary] <= 0 {
			return fmt.Errorf("date %s: %s must be > 0", p.Date.Format(DateLayout), primary)
		}
	}
	return nil
}

// Merge concatenates cached and fetched, keeps one point per date with
// fetched winning on overlap, and sorts ascending.
func Merge(cached, fetched *Series) *Series {
	var fields, text []string
	for _, src := range []*Series{cached, fetched} {
		if src == nil {
			continue
		}
		fields = appendMissing(fields, src.Fields...)
		text = appendMissing(text, src.TextFields...)
	}
	out := NewSeries(fields, text)

	byDate := make(map[time.Time]int, cached.Len()+fetched.Len())
	for _, src := range []*Series{cached, fetched} {
		if src == nil {
			continue
		}
		for _, p := range src.Points {
			d := Day(p.Date)
			p.Date = d
			if i, ok := byDate[d]; ok {
				out.Points[i] = p
				continue
			}
			byDate[d] = len(out.Points)
			out.Points = append(out.Points, p)
		}
	}
	out.Sort()
	return out
}

// FillGaps reindexes the series to a continuous daily calendar. Missing days get
// numeric fields linearly interpolated between their neighbours and nil text.
func (s *Series) FillGaps() *Series {
	out := NewSeries(s.Fields, s.TextFields)
	if s.Empty() {
		return out
	}
	out.Points = make([]Point, 0, DaysBetween(s.MinDate(), s.MaxDate())+1)
	for i, p := range s.Points {
		if i > 0 {
			prev := s.Points[i-1]
			gap := DaysBetween(prev.Date, p.Date)
			for k := 1; k < gap; k++ {
				w := float64(k) / float64(gap)
				values := make(map[string]float64, len(s.Fields))
				for _, f := range s.Fields {
					a, okA := prev.Values[f]
					b, okB := p.Values[f]
					switch {
					case okA && okB:
						values[f] = a + (b-a)*w
					case okA:
						values[f] = a
					case okB:
						values[f] = b
					}
				}
				out.Points = append(out.Points, Point{Date: prev.Date.AddDate(0, 0, k), Values: values})
			}
		}
		out.Points = append(out.Points, p)
	}
	return out
}

func appendMissing(dst []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, d := range dst {
			if d == it {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, it)
		}
	}
	return dst
}
