package utils

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"2024-03-31", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), true},
		{" 2024-03-31 00:00:00 ", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-31T10:20:30", time.Date(2024, 3, 31, 10, 20, 30, 0, time.UTC), true},
		{"31/03/2024", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"NaN", time.Time{}, false},
		{"31-03-2024", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"100", 100, true},
		{"1234.56", 1234.56, true},
		{"1.234,56", 1234.56, true},
		{"1.234.567", 1234567, true},
		{"1.234.567,5", 1234567.5, true},
		{"1.234", 1.234, true},
		{"0", 0, true},
		{"", 0, false},
		{"nan", 0, false},
		{"-5", 0, false},
		{"abc", 0, false},
		{"Inf", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("expected (%v, %v), got (%v, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"45", 45, true},
		{"45.0", 45, true},
		{" 0 ", 0, true},
		{"45.5", 0, false},
		{"-1", 0, false},
		{"", 0, false},
		{"NA", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDays(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("expected (%v, %v), got (%v, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}
