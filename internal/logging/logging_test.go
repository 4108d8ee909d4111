package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskr.log")
	log, sync, err := New(Options{File: path, Level: "info"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debugw("hidden")
	log.Infow("task saved", "task", "abc")
	sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"task saved"`) || !strings.Contains(out, `"task":"abc"`) {
		t.Errorf("unexpected log output: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
}

func TestBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNoOutputs(t *testing.T) {
	log, sync, err := New(Options{Level: "info"})
	if err != nil {
		t.Fatal(err)
	}
	log.Infow("dropped")
	sync()
}
