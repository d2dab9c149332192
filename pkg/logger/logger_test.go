package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestInitWithFormatRejectsUnknown(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithFormat("xml", &buf); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(FormatJSON, &buf, slog.LevelDebug)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	l.Named("delta").Warn(context.Background(), "rank gap",
		String("category", "coding"),
		Int("rank", 7),
		Bool("degraded", true),
		Duration("age", 2*time.Hour),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "rank gap" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["logger"] != "delta" {
		t.Errorf("logger = %v", entry["logger"])
	}
	if entry["category"] != "coding" {
		t.Errorf("category = %v", entry["category"])
	}
	if entry["degraded"] != true {
		t.Errorf("degraded = %v", entry["degraded"])
	}
	src, _ := entry["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source = %q, want caller file", src)
	}
}

func TestNamedNests(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(FormatText, &buf, nil)
	l.Named("app").Named("refresh").Info(context.Background(), "done")
	if !strings.Contains(buf.String(), "logger=app.refresh") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(FormatText, &buf, slog.LevelWarn)
	l.Info(context.Background(), "hidden")
	l.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %s", buf.String())
	}
	l.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn not written: %s", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("SetLevelString(%q) = %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestNop(t *testing.T) {
	n := Nop()
	n.Info(context.Background(), "ignored")
	if n.Named("x") == nil {
		t.Fatal("named nop logger is nil")
	}
}
