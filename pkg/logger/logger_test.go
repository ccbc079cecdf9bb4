package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: "debug", Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithCollection(ctx, "stories")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"collection\":\"stories\"")) {
		t.Fatalf("expected collection field; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: "debug", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled; entry=%s", buf.String())
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Level: "debug", Output: buf})
	quiet.WarnErr(context.Background(), "cleanup failed", errors.New("gone"))
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("did not expect stack without warn stack; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"error\":\"gone\"")) {
		t.Fatalf("expected error field on WarnErr; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := parseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := parseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := parseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestLoggerTagsEnvAndSortsFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Env: "dev", Output: buf})

	ctx := log.WithFields(context.Background(), map[string]any{"b": 2, "a": 1})
	log.Info(ctx, "hello")

	entry := buf.String()
	if !strings.Contains(entry, `"env":"dev"`) {
		t.Fatalf("expected env field; entry=%s", entry)
	}
	if strings.Index(entry, `"a":1`) > strings.Index(entry, `"b":2`) {
		t.Fatalf("expected fields in key order; entry=%s", entry)
	}
}

func TestLoggerConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Format: " Console ", Output: buf})
	log.Info(log.WithRecordID(context.Background(), "rec-1"), "created")

	entry := buf.String()
	if strings.HasPrefix(strings.TrimSpace(entry), "{") {
		t.Fatalf("expected console output, got json: %s", entry)
	}
	if !strings.Contains(entry, "rec-1") {
		t.Fatalf("expected record id in console entry: %s", entry)
	}
}

func TestLoggerDefaultsToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})
	log.Debug(context.Background(), "cache miss detail")
	if buf.Len() != 0 {
		t.Fatalf("expected debug entries dropped by default; entry=%s", buf.String())
	}

	log.Info(context.Background(), "ready")
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Fatalf("expected info entry; entry=%s", buf.String())
	}
}
