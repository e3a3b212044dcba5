package logging

import (
	"log/slog"
	"testing"
)

func TestNewRespectsLevel(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(tt.level)
			if !l.Enabled(nil, tt.enabled) {
				t.Errorf("level %q should enable %v", tt.level, tt.enabled)
			}
			if l.Enabled(nil, tt.muted) {
				t.Errorf("level %q should mute %v", tt.level, tt.muted)
			}
		})
	}
}

func TestWithReturnsChildLogger(t *testing.T) {
	l := Default().With("component", "test")
	if l == nil || l.Logger == nil {
		t.Fatal("With returned nil logger")
	}
}
