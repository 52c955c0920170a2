package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 7, 15, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-07-15T14:30:00Z", want},
		{"2024-07-15T14:30:00", want},
		{"2024-07-15 14:30:00", want},
		{"2024-07-15T14:30", want},
		{"2024-07-15T14:30:00.000Z", want},
		{"2024-07-15T16:30:00+02:00", want},
		{"2024-07-15T16:30:00 02:00", want},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	for _, bad := range []string{"", "yesterday", "2024-13-01T00:00:00Z", "1721053800"} {
		_, err := parseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}
