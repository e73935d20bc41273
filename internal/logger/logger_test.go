package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	return m
}

func TestSlog_ContextFieldsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Service: "copexport"}, &buf)
	l := NewSlog(&zl).With("collection", "op-test")

	ctx := WithExport(context.Background(), "exp-1")
	ctx = WithLayer(ctx, "roads")
	ctx = WithZone(ctx, "R05_08")
	ctx = WithComponent(ctx, "coverage")
	l.ErrorContext(ctx, "zone fetch failed", "attempt", 2, "err", errors.New("boom"))

	m := decodeLine(t, &buf)
	want := map[string]any{
		"level":      "error",
		"msg":        "zone fetch failed",
		"service":    "copexport",
		"export_id":  "exp-1",
		"layer":      "roads",
		"dggs_zone":  "R05_08",
		"component":  "coverage",
		"collection": "op-test",
		"err":        "boom",
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s=%v want %v (line=%v)", k, m[k], v, m)
		}
	}
	if m["attempt"] != float64(2) {
		t.Fatalf("attempt=%v", m["attempt"])
	}
	if _, ok := m["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", m)
	}
}

func TestSlog_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	l := NewSlog(&zl)

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("shown")
	if m := decodeLine(t, &buf); m["msg"] != "shown" || m["level"] != "warn" {
		t.Fatalf("line=%v", m)
	}
	Build(Config{Level: "info"}, &bytes.Buffer{})
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	id := FieldsFrom(WithRequestID(context.Background(), "")).RequestID
	if len(id) != 16 {
		t.Fatalf("generated id=%q", id)
	}
	if f := FieldsFrom(WithExport(context.Background(), "")); f != (Fields{}) {
		t.Fatalf("empty export id should not be stored: %+v", f)
	}
}

func TestWithExport_ResetsLayerAndZone(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithExport(ctx, "exp-1")
	ctx = WithZone(WithLayer(ctx, "roads"), "R05_08")

	next := WithExport(ctx, "exp-2")
	want := Fields{RequestID: "req-1", ExportID: "exp-2"}
	if got := FieldsFrom(next); got != want {
		t.Fatalf("fields=%+v want %+v", got, want)
	}
	if got := FieldsFrom(ctx); got.Layer != "roads" || got.ExportID != "exp-1" {
		t.Fatalf("parent context changed: %+v", got)
	}
}

func TestBuild_StaticFieldsAndLevelNames(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "WARNING", Service: "copexport", Version: "1.2.0", Command: "export"}, &buf)
	NewSlog(&zl).Warn("disk almost full")
	m := decodeLine(t, &buf)
	if m["service"] != "copexport" || m["version"] != "1.2.0" || m["command"] != "export" {
		t.Fatalf("static fields missing: %v", m)
	}

	for in, want := range map[string]string{"debug": "debug", "": "info", "bogus": "info", "error": "error"} {
		Build(Config{Level: in}, &bytes.Buffer{})
		if got := zerolog.GlobalLevel().String(); got != want {
			t.Fatalf("level %q -> %s want %s", in, got, want)
		}
	}
	Build(Config{Level: "info"}, &bytes.Buffer{})
}
