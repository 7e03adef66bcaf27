package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: WarnLevel, Output: &buf})

	logger.Debug("debug message", nil)
	logger.Info("info message", nil)
	logger.Warn("warn message", nil)
	logger.Error("error message", nil)

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below warn should be filtered, got:\n%s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("warn and error should be logged, got:\n%s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})

	logger.Info("hello", map[string]interface{}{"count": 3})

	var entry struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Level != "info" || entry.Message != "hello" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["count"] != float64(3) {
		t.Errorf("fields not carried through: %+v", entry.Fields)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})
	tagged := logger.With(map[string]interface{}{"runId": "abc"})

	tagged.Info("first", nil)
	tagged.Info("second", map[string]interface{}{"extra": true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.Contains(line, `"runId":"abc"`) {
			t.Errorf("line missing attached field: %s", line)
		}
	}
	if !strings.Contains(lines[1], `"extra":true`) {
		t.Errorf("per-call field missing: %s", lines[1])
	}
}

func TestHumanFieldOrderStable(t *testing.T) {
	fields := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	var first string
	for i := 0; i < 5; i++ {
		var buf bytes.Buffer
		logger := NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: &buf})
		logger.Info("msg", fields)
		line := buf.String()
		// Strip the timestamp prefix before comparing
		idx := strings.Index(line, "[info]")
		if idx < 0 {
			t.Fatalf("unexpected line: %s", line)
		}
		if first == "" {
			first = line[idx:]
		} else if line[idx:] != first {
			t.Fatalf("field order not stable: %q vs %q", first, line[idx:])
		}
	}
	if !strings.Contains(first, "a=2 b=1 c=3") {
		t.Errorf("fields not sorted: %s", first)
	}
}
