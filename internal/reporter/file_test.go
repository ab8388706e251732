package reporter

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

func fixedWriter(dir string) *FileWriter {
	return &FileWriter{
		Dir:      dir,
		Now:      func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local) },
		Hostname: func() (string, error) { return "web01", nil },
	}
}

func sampleMatches() []models.MatchRecord {
	return []models.MatchRecord{
		{
			SiteName:         "shop",
			PluginName:       "WooCommerce",
			InstalledVersion: "8.1.0",
			ThreatTitle:      "SQL injection, unauthenticated",
			CVE:              "CVE-2023-0001",
			CVSSScore:        "9.8",
			Reference:        "https://example.org/a",
		},
		{
			SiteName:         "blog",
			PluginName:       "Contact Form 7",
			InstalledVersion: "5.3.1",
			ThreatTitle:      `Unrestricted "file" upload`,
			CVE:              "CVE-2020-35489",
			CVSSScore:        "10.0",
			Reference:        "https://example.org/b",
		},
	}
}

func TestFileWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := fixedWriter(dir)

	path, err := w.Write(sampleMatches())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantName := "2024-03-09_14-05-07_web01.csv"
	if filepath.Base(path) != wantName {
		t.Errorf("file name = %q, want %q", filepath.Base(path), wantName)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if strings.Join(rows[0], ",") != "Site Name,Plugin Name,Installed Version,Threat Title,CVE,CVSS Score,Reference" {
		t.Errorf("header = %v", rows[0])
	}
	// rows are sorted by site
	if rows[1][0] != "blog" || rows[2][0] != "shop" {
		t.Errorf("site order = %q, %q", rows[1][0], rows[2][0])
	}
	if rows[1][3] != `Unrestricted "file" upload` {
		t.Errorf("quoted title = %q", rows[1][3])
	}
	if rows[2][3] != "SQL injection, unauthenticated" {
		t.Errorf("title with comma = %q", rows[2][3])
	}

	// no temp files are left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the report", len(entries))
	}
}

func TestFileWriter_NoMatches(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := fixedWriter(dir)

	path, err := w.Write(nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("no directory or file should be created for an empty match list")
	}
}

func TestFileWriter_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	path, err := fixedWriter(dir).Write(sampleMatches())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report missing: %v", err)
	}
}

func TestFileWriter_Unwritable(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := fixedWriter(filepath.Join(blocker, "reports")).Write(sampleMatches())
	if err == nil {
		t.Fatal("expected error")
	}
	var rwErr *ReportWriteError
	if !errors.As(err, &rwErr) {
		t.Fatalf("error type = %T, want *ReportWriteError", err)
	}
}

func TestFileWriter_HostnameError(t *testing.T) {
	dir := t.TempDir()
	w := fixedWriter(dir)
	w.Hostname = func() (string, error) { return "", errors.New("no uts namespace") }

	_, err := w.Write(sampleMatches())
	var rwErr *ReportWriteError
	if !errors.As(err, &rwErr) {
		t.Fatalf("error = %v, want *ReportWriteError", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dir has %d entries, want none", len(entries))
	}
}

func TestSanitizeHost(t *testing.T) {
	tests := map[string]string{
		"web01":         "web01",
		"web01.local":   "web01.local",
		"bad/host:name": "bad_host_name",
		"  ":            "unknown-host",
		"tab\there":     "tab_here",
	}
	for in, want := range tests {
		if got := sanitizeHost(in); got != want {
			t.Errorf("sanitizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}
