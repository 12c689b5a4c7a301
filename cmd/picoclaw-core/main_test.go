package main

import (
	"os"
	"strings"
	"testing"
)

func withStdin(t *testing.T, content string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	if _, err := w.WriteString(content); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	original := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = original })
}

func TestReadStdinJoinsLinesWithNewline(t *testing.T) {
	withStdin(t, "hello\nworld\n")

	got, err := readStdin()
	if err != nil {
		t.Fatalf("readStdin() error: %v", err)
	}
	if want := "hello\nworld"; got != want {
		t.Errorf("readStdin() = %q, want %q", got, want)
	}
}

func TestReadStdinEmptyInputIsEmptyString(t *testing.T) {
	withStdin(t, "")

	got, err := readStdin()
	if err != nil {
		t.Fatalf("readStdin() error: %v", err)
	}
	if got != "" {
		t.Errorf("readStdin() = %q, want empty", got)
	}
}

func TestReadStdinSingleLineNoTrailingNewline(t *testing.T) {
	withStdin(t, "one line")

	got, err := readStdin()
	if err != nil {
		t.Fatalf("readStdin() error: %v", err)
	}
	if got != "one line" {
		t.Errorf("readStdin() = %q, want %q", got, "one line")
	}
	if strings.Contains(got, "\n") {
		t.Errorf("readStdin() should not contain a newline for single-line input, got %q", got)
	}
}
