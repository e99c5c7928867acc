package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()

	tests := []struct {
		in string
		ok bool
	}{
		{"2024-10-10", true},
		{"2024-10-10T10:10:10Z", true},
		{"2024-10-10T10:10:10.123456Z", true},
		{strconv.FormatInt(ts, 10), true},
		{"", false},
		{"yesterday", false},
		{"-5", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %v", got)
			}
		})
	}
}
