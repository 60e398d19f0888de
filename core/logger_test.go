package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	logger := NewProductionLogger("test")
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLevel("WARN")

	logger.Debug("debug msg", nil)
	logger.Info("info msg", nil)
	logger.Warn("warn msg", nil)
	logger.Error("error msg", nil)

	out := buf.String()
	if strings.Contains(out, "debug msg") || strings.Contains(out, "info msg") {
		t.Errorf("messages below WARN leaked through: %q", out)
	}
	if !strings.Contains(out, "warn msg") || !strings.Contains(out, "error msg") {
		t.Errorf("expected WARN and ERROR output, got %q", out)
	}
}

func TestLoggerDebugEnabledBySetLevel(t *testing.T) {
	logger := NewProductionLogger("test")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug output at default level: %q", buf.String())
	}

	logger.SetLevel("DEBUG")
	logger.Debug("visible", nil)
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output after SetLevel, got %q", buf.String())
	}
}

func TestLoggerTextFormat(t *testing.T) {
	logger := NewProductionLogger("storefront")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Info("Location resolved", map[string]interface{}{
		"source": "ip",
		"error":  "boom",
	})

	out := buf.String()
	if !strings.Contains(out, "[INFO]") || !strings.Contains(out, "[storefront]") {
		t.Errorf("missing level/service markers: %q", out)
	}
	if !strings.Contains(out, "source=ip") {
		t.Errorf("missing field: %q", out)
	}
	// The error field is surfaced first
	if strings.Index(out, "error=") > strings.Index(out, "source=") {
		t.Errorf("error field should lead: %q", out)
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	t.Setenv("STOREFRONT_LOG_FORMAT", "json")

	logger := NewProductionLogger("storefront")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Info("Signed in", map[string]interface{}{
		"user_id": "u-1",
		"message": "must not clobber",
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "INFO" || entry["service"] != "storefront" {
		t.Errorf("entry = %v", entry)
	}
	if entry["message"] != "Signed in" {
		t.Errorf("reserved field overwritten: %v", entry["message"])
	}
	if entry["user_id"] != "u-1" {
		t.Errorf("missing custom field: %v", entry)
	}
}

func TestLoggerEnvLevel(t *testing.T) {
	t.Setenv("STOREFRONT_LOG_LEVEL", "ERROR")

	logger := NewProductionLogger("test")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Warn("suppressed", nil)
	logger.Error("shown", nil)

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("WARN leaked at ERROR level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("missing ERROR output: %q", out)
	}
}
