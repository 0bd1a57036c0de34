package files

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSHA256File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	got, err := SHA256File(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Errorf("Expected digest %s, got %s", want, got)
	}
}

func TestSHA256FileMissing(t *testing.T) {
	_, err := SHA256File(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSHA256FileDetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	before, err := SHA256File(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("Failed to rewrite test file: %v", err)
	}

	after, err := SHA256File(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if before == after {
		t.Error("Expected digest to change when content changes")
	}
}
