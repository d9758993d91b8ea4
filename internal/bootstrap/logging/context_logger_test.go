package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsReplacesDuplicateKeys(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.String("app", "crane"))
	ctx = WithComponent(ctx, "b")

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("len(attrs) = %d, want 2", len(attrs))
	}
	if attrs[0].Key != "component" || attrs[0].Value.String() != "b" {
		t.Fatalf("attrs[0] = %v", attrs[0])
	}
}

func TestLogWritesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "json", "debug"))
	ctx = WithComponent(ctx, "recordstore")

	Debug(ctx, "rows loaded", slog.Int("rows", 3))

	out := buf.String()
	for _, want := range []string{`"component":"recordstore"`, `"rows":3`, `"msg":"rows loaded"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "text", "warn"))

	Info(ctx, "hidden")
	Warn(ctx, "shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info line should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}
