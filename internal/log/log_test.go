package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"hisab/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "info", "json")).Info("hello", "k", "v")
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil || m["k"] != "v" {
		t.Fatalf("expected JSON output, got %q (%v)", buf.String(), err)
	}

	buf.Reset()
	slog.New(NewHandler(&buf, "warn", "text")).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
}

func TestLogTransactionFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: "test", Handler: NewHandler(&buf, "info", "json")})
	sl := NewStructuredLogger(logger)

	tx := core.Transaction{ID: "t1", Kind: core.Expense, Amount: core.MustAmount("3.50"), Description: "secret note"}
	sl.LogTransaction(context.Background(), OpCreate, tx, "mom@x.io")

	out := buf.String()
	for _, want := range []string{`"msg":"Transaction created"`, `"transaction_id":"t1"`, `"category":"General"`, `"actor":"mom@x.io"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
	if strings.Contains(out, "secret note") {
		t.Error("description must not be logged")
	}
}

func TestLogErrorWithNilFields(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: NewHandler(&buf, "info", "json")}))
	sl.LogError(context.Background(), "boom", errors.New("bad"), ComponentLedger, OpDelete, nil)
	if !strings.Contains(buf.String(), `"error":"bad"`) {
		t.Errorf("unexpected output %s", buf.String())
	}
}

func TestStructuredLoggerPrefersContextLogger(t *testing.T) {
	var base, scoped bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: NewHandler(&base, "info", "json")}))
	reqLogger := New(Config{Handler: NewHandler(&scoped, "info", "json")}).With(FieldRequestID, "req_1")

	ctx := NewContext(context.Background(), reqLogger)
	sl.LogError(ctx, "boom", errors.New("bad"), ComponentHTTP, OpSignIn, nil)

	if base.Len() != 0 {
		t.Errorf("base logger should be bypassed, got %s", base.String())
	}
	if !strings.Contains(scoped.String(), `"request_id":"req_1"`) {
		t.Errorf("request id missing: %s", scoped.String())
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext must fall back to a default logger")
	}
}

func TestComponentIsWrittenOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: "app", Handler: NewHandler(&buf, "info", "text")}).
		WithComponent(ComponentHTTP).
		With(FieldRequestID, "req_1")

	logger.InfoContext(context.Background(), "plain")
	NewStructuredLogger(logger).LogError(context.Background(), "boom", errors.New("bad"), ComponentLedger, OpDelete, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %q", buf.String())
	}
	for _, line := range lines {
		if n := strings.Count(line, "component="); n != 1 {
			t.Errorf("component written %d times: %s", n, line)
		}
	}
	if !strings.Contains(lines[0], "component=http") || !strings.Contains(lines[1], "component=ledger") {
		t.Errorf("unexpected components: %q", lines)
	}
}
