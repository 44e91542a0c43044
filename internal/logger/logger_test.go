package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return out
}

func TestJSONOutputCarriesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info", Format: "json"}, "authd", &buf).WithComponent("engine")

	l.Info("login succeeded", map[string]interface{}{FieldPrincipalID: "p-1"})

	line := decodeLine(t, &buf)
	if line[FieldService] != "authd" || line[FieldComponent] != "engine" || line[FieldPrincipalID] != "p-1" {
		t.Fatalf("unexpected fields: %v", line)
	}
	if line["level"] != "info" || line["message"] != "login succeeded" {
		t.Fatalf("unexpected level/message: %v", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "warn", Format: "json"}, "authd", &buf)
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn should be written")
	}
}

func TestKVAndErrors(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Format: "json"}, "authd", &buf)
	l.KV("record login failed", "principal_id", "p-1", "error", errors.New("boom"), "dangling")

	line := decodeLine(t, &buf)
	if line["principal_id"] != "p-1" || line["error"] != "boom" {
		t.Fatalf("unexpected kv fields: %v", line)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	cfg.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid level error")
	}
}
