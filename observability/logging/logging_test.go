package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerRenamesCoreFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf)).With(baseAttrs("synthvaultd", "dev")...)
	logger.Info("server started", "addr", ":8545")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["message"] != "server started" {
		t.Fatalf("message = %v, want %q", line["message"], "server started")
	}
	if line["severity"] != "INFO" {
		t.Fatalf("severity = %v, want INFO", line["severity"])
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatal("missing timestamp field")
	}
	if line["service"] != "synthvaultd" || line["env"] != "dev" {
		t.Fatalf("service/env attrs missing: %v", line)
	}
	for _, stale := range []string{"msg", "level", "time"} {
		if _, ok := line[stale]; ok {
			t.Fatalf("default slog key %q leaked into output", stale)
		}
	}
}

func TestBaseAttrsSkipEmptyEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf)).With(baseAttrs("synthvaultd", "  ")...)
	logger.Info("ok")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if _, ok := line["env"]; ok {
		t.Fatalf("blank env must not be tagged: %v", line)
	}
}

func TestMaskValue(t *testing.T) {
	if got := MaskValue("Bearer super-secret"); got != RedactedValue {
		t.Fatalf("MaskValue = %q, want %q", got, RedactedValue)
	}
	if got := MaskValue(""); got != "" {
		t.Fatalf("empty value changed to %q", got)
	}
	if got := MaskValue("   "); got != "   " {
		t.Fatalf("whitespace value changed to %q", got)
	}
}
