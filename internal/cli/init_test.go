package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"hisab/internal/log"
)

func testLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(log.Config{Component: "test", Handler: log.NewHandler(buf, "info", "text")})
}

func TestShutdownRunsCleanup(t *testing.T) {
	var buf bytes.Buffer
	ran := false
	Shutdown(testLogger(&buf), time.Second, func(ctx context.Context) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("cleanup context should carry a deadline")
		}
		ran = true
	})
	if !ran {
		t.Fatal("cleanup was not called")
	}
	if !strings.Contains(buf.String(), "Shutdown complete") {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

func TestShutdownGivesUpAfterTimeout(t *testing.T) {
	var buf bytes.Buffer
	release := make(chan struct{})
	defer close(release)

	Shutdown(testLogger(&buf), 20*time.Millisecond, func(ctx context.Context) {
		<-release
	})
	if !strings.Contains(buf.String(), "Shutdown timeout reached") {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

func TestSignalContextCancel(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := SignalContext(testLogger(&buf))
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}
