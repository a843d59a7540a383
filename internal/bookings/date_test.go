package bookings

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{name: "plain date", input: "2025-06-15"},
		{name: "utc timestamp", input: "2025-06-15T00:00:00Z"},
		{name: "late evening with negative offset", input: "2025-06-15T23:30:00-05:00"},
		{name: "early morning with positive offset", input: "2025-06-15T01:00:00+09:00"},
		{name: "fractional seconds", input: "2025-06-15T12:00:00.123Z"},
		{name: "no zone suffix", input: "2025-06-15T18:45:00"},
		{name: "surrounding spaces", input: "  2025-06-15 "},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDate(tt.input)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !got.Equal(want) {
				t.Fatalf("expected %v, got %v", want, got)
			}
			if got.Location() != time.UTC {
				t.Fatalf("expected UTC location, got %v", got.Location())
			}
		})
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "15/06/2025", "2025-13-01", "tomorrow"} {
		_, err := ParseDate(input)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("input %q: expected validation error, got %v", input, err)
		}
	}
}

func TestNormalizeDateIsIdempotent(t *testing.T) {
	t.Parallel()

	in := time.Date(2025, 6, 15, 22, 10, 0, 0, time.FixedZone("EST", -5*3600))
	once := NormalizeDate(in)
	twice := NormalizeDate(once)
	if !once.Equal(twice) {
		t.Fatalf("expected %v, got %v", once, twice)
	}
	if FormatDate(once) != "2025-06-15" {
		t.Fatalf("expected 2025-06-15, got %s", FormatDate(once))
	}
}
