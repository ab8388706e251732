package feedstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSave(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "uploads"), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.TTL != DefaultTTL {
		t.Errorf("TTL = %v, want %v", s.TTL, DefaultTTL)
	}

	first, err := s.Save("threats.CSV", strings.NewReader("slug;name\n"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(first) != s.Dir {
		t.Errorf("saved outside store: %s", first)
	}
	if !strings.HasSuffix(first, ".csv") {
		t.Errorf("path = %q, want .csv suffix", first)
	}
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "slug;name\n" {
		t.Errorf("content = %q", data)
	}

	again, err := s.Save("other-name.csv", strings.NewReader("slug;name\n"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if again != first {
		t.Errorf("same content stored twice: %s, %s", first, again)
	}

	different, err := s.Save("threats.csv", strings.NewReader("slug;name\nx;y\n"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if different == first {
		t.Error("different content shares a name")
	}

	entries, _ := os.ReadDir(s.Dir)
	if len(entries) != 2 {
		t.Errorf("store has %d entries, want 2 (no temp files left)", len(entries))
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"feed.csv", ".csv"},
		{"feed.TOML", ".toml"},
		{"feed", DefaultExt},
		{"../../etc/passwd", DefaultExt},
		{"feed.c$v", DefaultExt},
		{"feed.averyverylongext", DefaultExt},
		{"dir.d/feed", DefaultExt},
	}

	for _, tt := range tests {
		if got := extension(tt.name); got != tt.want {
			t.Errorf("extension(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPrune(t *testing.T) {
	s, err := New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	stale, err := s.Save("old.csv", strings.NewReader("old"))
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := s.Save("new.csv", strings.NewReader("new"))
	if err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale feed should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh feed should remain: %v", err)
	}
}

func TestClear(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, body := range []string{"a", "b", "c"} {
		if _, err := s.Save("f.csv", strings.NewReader(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, _ := os.ReadDir(s.Dir)
	if len(entries) != 0 {
		t.Errorf("store has %d entries after Clear", len(entries))
	}
}
