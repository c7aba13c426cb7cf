package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ambedkargpt/internal/domain"
)

func TestFile_Missing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "speech.txt"))
	ok, err := f.Exists()
	if err != nil || ok {
		t.Errorf("Exists() = %v, %v; want false, nil", ok, err)
	}
	if _, err := f.Load(); !errors.Is(err, domain.ErrCorpusNotFound) {
		t.Errorf("expected ErrCorpusNotFound, got %v", err)
	}
}

func TestFile_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.txt")
	want := "Social reform is like gardening."
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewFile(path)
	ok, err := f.Exists()
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
	got, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFile_DirectoryIsNotACorpus(t *testing.T) {
	f := NewFile(t.TempDir())
	ok, err := f.Exists()
	if err != nil || ok {
		t.Errorf("Exists() = %v, %v; want false, nil", ok, err)
	}
	if _, err := f.Load(); err == nil || errors.Is(err, domain.ErrCorpusNotFound) {
		t.Errorf("expected a read error distinct from not-found, got %v", err)
	}
}

func TestFile_InvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFile(path).Load(); err == nil {
		t.Fatal("expected UTF-8 error")
	}
}
