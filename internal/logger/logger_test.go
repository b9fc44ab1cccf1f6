package logger

import (
	"testing"

	"lobby-scout/internal/config"

	"github.com/rs/zerolog"
)

func TestLevelComesFromConfig(t *testing.T) {
	cases := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"default", "info", zerolog.InfoLevel},
		{"empty falls back to info", "", zerolog.InfoLevel},
		{"garbage falls back to info", "loudest", zerolog.InfoLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log := New(&config.Config{LogLevel: tc.level})
			if got := log.GetLevel(); got != tc.want {
				t.Fatalf("level for %q: got %s, want %s", tc.level, got, tc.want)
			}
		})
	}
}
