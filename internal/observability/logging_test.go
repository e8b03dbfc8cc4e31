package observability_test

import (
	"DepositsDetector/internal/observability"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"Error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := observability.ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithAccount_TagsEveryEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.WithAccount(observability.NewLoggerTo(&buf, "loop", zerolog.InfoLevel), 42)

	logger.Info().Msg("getting updates")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry %q: %v", buf.String(), err)
	}
	if entry["component"] != "loop" {
		t.Errorf("component = %v, want loop", entry["component"])
	}
	if entry[observability.FieldAccountID] != float64(42) {
		t.Errorf("%s = %v, want 42", observability.FieldAccountID, entry[observability.FieldAccountID])
	}
}

func TestNewLoggerTo_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLoggerTo(&buf, "processor", zerolog.WarnLevel)

	logger.Info().Msg("deposit detected")
	if buf.Len() != 0 {
		t.Errorf("info entry written at warn level: %s", buf.String())
	}

	logger.Warn().Msg("ingestion cycle failed")
	if buf.Len() == 0 {
		t.Error("warn entry was not written")
	}
}
