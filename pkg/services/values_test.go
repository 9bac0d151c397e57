package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"1234", 1234, true},
		{"1,234,567", 1234567, true},
		{"₩50,000", 50000, true},
		{"30000원", 30000, true},
		{"$99.50", 99.5, true},
		{" 42 ", 42, true},
		{"-120", -120, true},
		{"", 0, false},
		{"합계", 0, false},
		{"12a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseNumeric(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"2024-03-15", "2024-03-15", true},
		{"2024.03.15", "2024-03-15", true},
		{"2024/03/15", "2024-03-15", true},
		{"20240315", "2024-03-15", true},
		{"2024-03-15 10:30:00", "2024-03-15", true},
		{"2024년 3월 15일", "2024-03-15", true},
		{"", "", false},
		{"not a date", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format(time.DateOnly))
			}
		})
	}
}

func TestOptionalHelpers(t *testing.T) {
	assert.Nil(t, optionalString("   "))
	require.NotNil(t, optionalString(" 강남지점 "))
	assert.Equal(t, "강남지점", *optionalString(" 강남지점 "))

	assert.Nil(t, optionalInt64("n/a"))
	require.NotNil(t, optionalInt64("3,500"))
	assert.Equal(t, int64(3500), *optionalInt64("3,500"))
}
