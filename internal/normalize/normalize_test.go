package normalize

import (
	"testing"
	"time"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"$1,234,567.00", 1234567, true},
		{"2.5 million", 2500000, true},
		{"$1.2 Million", 1200000, true},
		{"€500,000", 500000, true},
		{"1,5", 1.5, true},
		{"1.234,56", 1234.56, true},
		{"$2.5M", 2500000, true},
		{"USD 3 billion", 3e9, true},
		{"10k", 10000, true},
		{"75 thousand dollars", 75000, true},
		{"1.234.567", 1234567, true},
		{"Up to $250,000 per award", 250000, true},
		{"not a number", 0, false},
		{"", 0, false},
		{"$", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseCurrency(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseCurrency(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseCurrency(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw    string
		want   time.Time
		wantOK bool
	}{
		{"2025-03-15", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"03/15/2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"3/5/2025", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"2025-03-15T17:00:00-04:00", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"March 15, 2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"Deadline: 2025-06-30", time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), true},
		{"Responses due Jun 30th, 2025 by noon", time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), true},
		{"2024-13-45", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v (got %v), want %v", tt.raw, ok, got, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDate_MalformedNeverPanics(t *testing.T) {
	inputs := []string{
		"99/99/9999", "00-00-0000", "2024-02-30", "////", "-- --", "13/13/2013",
		"\x00\x01", "Feb 31, 2024", "9999999999999999999999", "T:Z",
	}
	for _, in := range inputs {
		if got, ok := ParseDate(in); ok && got.IsZero() {
			t.Errorf("ParseDate(%q) reported ok with zero date", in)
		}
	}
}
