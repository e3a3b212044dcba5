package agent

import (
	"testing"
	"time"
)

// refThursday is a fixed reference date (a Thursday) so relative
// expressions resolve deterministically.
var refThursday = time.Date(2025, 8, 28, 10, 0, 0, 0, time.Local)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"today", "today", "2025-08-28", true},
		{"tomorrow", "tomorrow", "2025-08-29", true},
		{"next monday", "next Monday", "2025-09-01", true},
		{"next thursday skips today", "next Thursday", "2025-09-04", true},
		{"bare friday", "Friday", "2025-08-29", true},
		{"bare thursday is today", "thursday", "2025-08-28", true},
		{"this saturday", "this Saturday", "2025-08-30", true},
		{"iso passthrough", "2025-09-15", "2025-09-15", true},
		{"us slashes", "09/15/2025", "2025-09-15", true},
		{"long form", "September 15, 2025", "2025-09-15", true},
		{"short month", "Sep 15, 2025", "2025-09-15", true},
		{"garbage", "whenever works", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeDate(tt.raw, refThursday)
			if ok != tt.ok {
				t.Fatalf("NormalizeDate(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"pm hour", "2pm", "14:00", true},
		{"pm with space", "2 pm", "14:00", true},
		{"pm with minutes", "2:30pm", "14:30", true},
		{"am hour", "9am", "09:00", true},
		{"twelve pm", "12pm", "12:00", true},
		{"twelve am", "12am", "00:00", true},
		{"already canonical", "14:00", "14:00", true},
		{"morning", "in the morning", "09:00", true},
		{"afternoon", "afternoon", "14:00", true},
		{"evening", "evening", "17:00", true},
		{"noon", "noon", "12:00", true},
		{"out of range hour", "25:00", "", false},
		{"out of range meridiem", "13pm", "", false},
		{"garbage", "soonish", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeTime(tt.raw)
			if ok != tt.ok {
				t.Fatalf("NormalizeTime(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("NormalizeTime(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate("2025-09-01"); got != "Monday, September 1, 2025" {
		t.Errorf("FormatDate = %q", got)
	}
	// Unparseable input is passed through untouched.
	if got := FormatDate("sometime"); got != "sometime" {
		t.Errorf("FormatDate fallback = %q", got)
	}
}

func TestFormatTime(t *testing.T) {
	if got := FormatTime("14:00"); got != "2:00 PM" {
		t.Errorf("FormatTime = %q", got)
	}
	if got := FormatTime("09:00"); got != "9:00 AM" {
		t.Errorf("FormatTime = %q", got)
	}
}
