package corelog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelWarn, Output: &buf})

	l.Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered, got: %s", buf.String())
	}

	l.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected warn message, got: %s", buf.String())
	}
}

func TestFormatArgsKeyValue(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Output: &buf})

	l.Info("connected", "peer", "10.0.0.1:443")
	if !strings.Contains(buf.String(), "peer=10.0.0.1:443") {
		t.Errorf("expected key=value pair, got: %s", buf.String())
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(New(&Config{Level: LevelDebug, Output: &buf}))
	t.Cleanup(func() { SetDefault(New(nil)) })

	Info("hello", "key", "value")
	if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "key=value") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestWithSocketAndOpFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Output: &buf})

	l.WithSocket(7).WithOp("recv").Info("timed out")
	out := buf.String()
	if !strings.Contains(out, "socket=7") || !strings.Contains(out, "op=recv") {
		t.Errorf("expected socket and op fields, got: %s", out)
	}
}

func TestWithErrorSkipsNil(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Output: &buf})

	l.WithError(nil).Info("ok")
	if strings.Contains(buf.String(), "error=") {
		t.Errorf("expected no error field for nil error, got: %s", buf.String())
	}
}

func TestPrintfSatisfiesLoggerInterface(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Output: &buf})
	l.Printf("op=%s n=%d", "send", 5)
	if !strings.Contains(buf.String(), "op=send n=5") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
