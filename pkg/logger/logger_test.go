package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	// Test development mode
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize development logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Test production mode
	err = Init()
	if err != nil {
		t.Fatalf("failed to initialize production logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger = Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}
}

// Basic logging test (slog-backed; no Sugar)
func TestLoggerBasic(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil")
	}

	ctx := context.Background()
	logger.Info(ctx, "test message", String("k", "v"))
}

func TestLoggerNamedWith(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	named := Named("detector").With(String("game_id", "g1"), Int64("sequence_number", 42))
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.Warn(context.Background(), "fault", String("rule", "sub_out_absent"), Bool("unreliable", false), Duration("took", 0))
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	for _, lvl := range []string{"debug", "INFO", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q: %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestInitFormats(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf), WithFormat("json")); err != nil {
		t.Fatalf("init json: %v", err)
	}
	defer func() { _ = Init() }()
	_ = SetLevelString("info")

	Get().Info(context.Background(), "hello", String("k", "v"))
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not json: %v: %s", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["k"] != "v" {
		t.Errorf("unexpected record: %v", rec)
	}
	if src, _ := rec["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("source should point at the caller, got %q", src)
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { _ = Init() }()
	_ = SetLevelString("info")

	ctx := ContextWith(context.Background(), String("run_id", "r1"), String("game_id", "g1"))
	ctx = ContextWith(ctx, String("game_id", "g2"))

	fields := FieldsFrom(ctx)
	if len(fields) != 2 {
		t.Fatalf("want 2 context fields, got %d", len(fields))
	}

	Get().Warn(ctx, "fault")
	out := buf.String()
	for _, want := range []string{"run_id=r1", "game_id=g2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "game_id=g1") {
		t.Errorf("overridden field leaked: %q", out)
	}
	if FieldsFrom(context.Background()) != nil {
		t.Error("background context should carry no fields")
	}
}
