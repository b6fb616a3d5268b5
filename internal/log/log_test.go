package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"":         zerolog.InfoLevel,
		"shouting": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithAddress(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "debug").With().Str("component", "sync").Logger()
	scoped := WithAddress(l, "1abc")
	scoped.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["component"] != "sync" || line["address"] != "1abc" || line["message"] != "hello" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestJSONLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "warn")
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	l.Warn().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn not written: %s", buf.String())
	}
}

func TestRootLoggerHelpers(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved })

	var buf bytes.Buffer
	Logger = NewJSONLogger(&buf, "info")
	Debug().Msg("hidden")
	Info().Msg("opened")
	Warn().Msg("closing")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug written at info level: %s", out)
	}
	if !strings.Contains(out, "opened") || !strings.Contains(out, "closing") {
		t.Errorf("missing entries: %s", out)
	}
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.log")
	if err := Init("info", true, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { Init("info", false, "") })

	Vault.Info().Msg("to file")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"component":"vault"`) {
		t.Fatalf("file log missing component: %s", data)
	}
}
