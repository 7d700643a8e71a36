package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"agentteam/internal/shared/utils/id"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(format string, args ...any) { r.add("DEBUG", format, args...) }
func (r *recordingLogger) Info(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *recordingLogger) Error(format string, args ...any) { r.add("ERROR", format, args...) }

func (r *recordingLogger) add(level, format string, args ...any) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func TestOrNopHandlesTypedNil(t *testing.T) {
	var rec *recordingLogger
	logger := OrNop(rec)
	logger.Info("ignored %d", 1)
	if !IsNil(rec) {
		t.Fatal("expected typed nil to be reported as nil")
	}
}

func TestMultiFlattensAndSkipsNil(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	var missing *recordingLogger

	logger := Multi(Multi(a, missing), b)
	logger.Warn("spawn %s denied", "ins-1")

	if len(a.lines) != 1 || len(b.lines) != 1 {
		t.Fatalf("expected one line per logger, got %v / %v", a.lines, b.lines)
	}
	if a.lines[0] != "WARN spawn ins-1 denied" {
		t.Fatalf("unexpected line %q", a.lines[0])
	}
}

func TestComponentLoggerWritesToBase(t *testing.T) {
	var buf bytes.Buffer
	SetBase(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { SetBase(nil) })

	logger := With(NewComponentLogger("agentteam"), "mission_id", "m-1")
	logger.Debug("hidden")
	logger.Info("admitted %s", "ins-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	for _, want := range []string{"admitted ins-1", "component=agentteam", "mission_id=m-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestFromContextTagsLogID(t *testing.T) {
	ctx := id.WithLogID(context.Background(), "log-abc")

	rec := &recordingLogger{}
	FromContext(ctx, rec).Info("cancel %s", "ins-1")
	if len(rec.lines) != 1 || rec.lines[0] != "INFO logid=log-abc cancel ins-1" {
		t.Fatalf("unexpected lines %v", rec.lines)
	}

	untagged := &recordingLogger{}
	FromContext(context.Background(), untagged).Info("plain")
	if untagged.lines[0] != "INFO plain" {
		t.Fatalf("unexpected line %q", untagged.lines[0])
	}

	var buf bytes.Buffer
	SetBase(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetBase(nil) })
	FromContext(ctx, NewComponentLogger("http")).Info("served")
	if !strings.Contains(buf.String(), "logid=log-abc") {
		t.Fatalf("expected logid attribute in %s", buf.String())
	}
}
