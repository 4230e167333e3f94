package logreactor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avgx/pion/reactor"
)

func eventWithField(termID int, value interface{}) *reactor.Event {
	ev := reactor.NewEvent()
	ev.Set(termID, value)
	return ev
}

func TestProcessAppendsOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	r, err := New(path, JSONCodec{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	r.Process(eventWithField(1, "first"))
	r.Process(eventWithField(1, "second"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "first") || !strings.Contains(lines[1], "second") {
		t.Errorf("unexpected log content: %q", data)
	}
}

func TestRotateRenamesNonEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	r, err := New(path, JSONCodec{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	r.Process(eventWithField(1, "hello"))
	if err := r.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected fresh file at basePath after rotation: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var rotated int
	for _, e := range entries {
		if e.Name() != "access.log" {
			rotated++
		}
	}
	if rotated != 1 {
		t.Errorf("expected exactly one rotated file, found %d entries besides access.log", rotated)
	}
}

func TestRotateRemovesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	r, err := New(path, JSONCodec{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the freshly reopened file to remain, found %d entries", len(entries))
	}
}

func TestCloseRemovesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	r, err := New(path, JSONCodec{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected empty log file to be removed on Close, stat err = %v", err)
	}
}
