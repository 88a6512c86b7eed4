package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, level string, emit func()) string {
	t.Helper()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("INFO")
	})

	emit()
	return buf.String()
}

func TestLevelFiltering(t *testing.T) {
	out := capture(t, "WARN", func() {
		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")
	})

	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Fatalf("messages below WARN should be suppressed, got: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Fatalf("WARN and ERROR should be emitted, got: %q", out)
	}
}

func TestLevelNames(t *testing.T) {
	out := capture(t, "DEBUG", func() {
		Warn("something")
	})

	if !strings.Contains(out, "[WARN]") {
		t.Fatalf("output should carry the level name, got: %q", out)
	}
}

func TestFormatting(t *testing.T) {
	out := capture(t, "INFO", func() {
		Info("seq=%d full=%t", 7, true)
	})

	if !strings.Contains(out, "seq=7 full=true") {
		t.Fatalf("printf formatting should apply, got: %q", out)
	}
}

func TestSetLevelCaseInsensitive(t *testing.T) {
	out := capture(t, "error", func() {
		Warn("hidden")
		Error("visible")
	})

	if strings.Contains(out, "hidden") {
		t.Fatalf("WARN should be suppressed at ERROR level, got: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("ERROR should be emitted, got: %q", out)
	}
}

func TestUnknownLevelKeepsCurrent(t *testing.T) {
	out := capture(t, "INFO", func() {
		SetLevel("LOUD")
		Info("still here")
	})

	if !strings.Contains(out, "still here") {
		t.Fatalf("unknown level name should not change filtering, got: %q", out)
	}
}
