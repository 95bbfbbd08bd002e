package timeparsing

import (
	"testing"
	"time"
)

func TestParseCompactDuration(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "+6h", want: time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)},
		{input: "-6h", want: time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC)},
		{input: "+1d", want: time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)},
		{input: "-1d", want: time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)},
		{input: "+2w", want: time.Date(2025, 6, 29, 12, 0, 0, 0, time.UTC)},
		{input: "-2w", want: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		{input: "3m", want: time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)},
		{input: "1y", want: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)},
		{input: "+365d", want: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)},
		{input: "6h+", wantErr: true},
		{input: "++1d", wantErr: true},
		{input: "1x", wantErr: true},
		{input: "", wantErr: true},
		{input: "6", wantErr: true},
		{input: "h", wantErr: true},
		{input: "+ 6h", wantErr: true},
		{input: "2025-01-15", wantErr: true},
		{input: "tomorrow", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCompactDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseCompactDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsCompactDuration(t *testing.T) {
	for _, valid := range []string{"+6h", "-1d", "+2w", "3m", "1y", "+24h"} {
		if !IsCompactDuration(valid) {
			t.Errorf("IsCompactDuration(%q) = false", valid)
		}
	}
	for _, invalid := range []string{"", "tomorrow", "2025-01-15", "6h+", "++1d", "1x"} {
		if IsCompactDuration(invalid) {
			t.Errorf("IsCompactDuration(%q) = true", invalid)
		}
	}
}

func TestParseCompactDurationLeapDay(t *testing.T) {
	now := time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC)
	got, err := ParseCompactDuration("+1d", now)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Feb 28 2024 +1d = %v, want %v", got, want)
	}
}

func TestParseCompactDurationKeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, loc)
	got, err := ParseCompactDuration("+1d", now)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != loc {
		t.Errorf("location = %v, want %v", got.Location(), loc)
	}
}

func TestParseRelativeTimeLayers(t *testing.T) {
	// Wednesday.
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)

	tests := []struct {
		name     string
		input    string
		wantDate [3]int // year, month, day
		wantHour int    // -1 skips the check
		wantErr  bool
	}{
		{"compact day", "+1d", [3]int{2025, 1, 16}, 10, false},
		{"compact hours", "+6h", [3]int{2025, 1, 15}, 16, false},
		{"natural tomorrow", "tomorrow", [3]int{2025, 1, 16}, -1, false},
		{"natural weekday", "next monday", [3]int{2025, 1, 20}, -1, false},
		{"date only", "2025-02-01", [3]int{2025, 2, 1}, 0, false},
		{"rfc3339", "2025-03-15T14:30:00Z", [3]int{2025, 3, 15}, 14, false},
		{"garbage", "not-a-date", [3]int{}, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelativeTime(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRelativeTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Year() != tt.wantDate[0] || int(got.Month()) != tt.wantDate[1] || got.Day() != tt.wantDate[2] {
				t.Errorf("ParseRelativeTime(%q) = %v, want %d-%02d-%02d",
					tt.input, got, tt.wantDate[0], tt.wantDate[1], tt.wantDate[2])
			}
			if tt.wantHour >= 0 && got.Hour() != tt.wantHour {
				t.Errorf("ParseRelativeTime(%q) hour = %d, want %d", tt.input, got.Hour(), tt.wantHour)
			}
		})
	}
}

// A compact duration must win over the natural-language layer, and a full
// timestamp must not be eaten by a partial natural-language hit on its
// time-of-day part.
func TestParseRelativeTimePrecedence(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)

	got, err := ParseRelativeTime("+1d", now)
	if err != nil {
		t.Fatalf("+1d: %v", err)
	}
	if want := now.AddDate(0, 0, 1); !got.Equal(want) {
		t.Errorf("+1d = %v, want %v", got, want)
	}

	got, err = ParseRelativeTime("2025-03-15T14:30:00Z", now)
	if err != nil {
		t.Fatalf("timestamp: %v", err)
	}
	if got.Day() != 15 || got.Month() != time.March {
		t.Errorf("timestamp = %v, want March 15 (partial natural-language match leaked through)", got)
	}
}
