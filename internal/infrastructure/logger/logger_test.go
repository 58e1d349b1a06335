package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerFormatsOutput(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		assertions func(t *testing.T, output string)
	}{
		{
			name:   "console format is human readable",
			format: "console",
			assertions: func(t *testing.T, output string) {
				if strings.HasPrefix(output, "{") || !strings.Contains(output, "voucher posted") {
					t.Fatalf("expected console output, got %q", output)
				}
			},
		},
		{
			name:   "json format carries service and fields",
			format: "json",
			assertions: func(t *testing.T, output string) {
				for _, want := range []string{`"service":"verifikat"`, `"voucher":"V001"`, `"message":"voucher posted"`} {
					if !strings.Contains(output, want) {
						t.Fatalf("expected %s in %q", want, output)
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(Config{Format: tt.format, Level: "info", Service: "verifikat"}, &buf)
			log.Info().Str("voucher", "V001").Msg("voucher posted")
			log.Debug().Msg("suppressed")

			output := buf.String()
			if strings.Contains(output, "suppressed") {
				t.Fatalf("debug line written at info level: %q", output)
			}
			tt.assertions(t, output)
		})
	}
}
