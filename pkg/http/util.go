package http

import (
	"time"

	xutil "BandPilot/pkg/util"
)

// ParseDateParam parses an optional YYYY-MM-DD (or RFC3339, or unix seconds) query value.
// Empty yields the zero time.
func ParseDateParam(field, s string) (time.Time, *AppError) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := xutil.ParseDate(s)
	if !ok {
		e := BadRequestErrorf("%s must be a date (YYYY-MM-DD)", field)
		e.Field = field
		return time.Time{}, e.WithParam("value", s)
	}
	return t, nil
}
