package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/cacheclient"
)

func TestLevelsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})))

	l.Debug("hidden", cacheclient.Fields{"k": 1})
	l.Info("namespace generation created", cacheclient.Fields{"provider": "Memory"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug leaked: %s", out)
	}
	if !strings.Contains(out, "provider=Memory") || !strings.Contains(out, "level=INFO") {
		t.Fatalf("out=%s", out)
	}
}
