package reporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// TimestampLayout formats the report file name prefix.
const TimestampLayout = "2006-01-02_15-04-05"

// ReportWriteError is returned when the report file cannot be produced.
type ReportWriteError struct {
	Path string
	Err  error
}

func (e *ReportWriteError) Error() string {
	return fmt.Sprintf("write report %s: %v", e.Path, e.Err)
}

func (e *ReportWriteError) Unwrap() error {
	return e.Err
}

// FileWriter persists matches as "<timestamp>_<host>.csv" in Dir.
type FileWriter struct {
	Dir      string
	Now      func() time.Time
	Hostname func() (string, error)
}

// NewFileWriter returns a FileWriter using the local clock and host name.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{Dir: dir, Now: time.Now, Hostname: os.Hostname}
}

// FileName returns the report file name for the current time and host.
func (w *FileWriter) FileName() (string, error) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	hostname := os.Hostname
	if w.Hostname != nil {
		hostname = w.Hostname
	}

	host, err := hostname()
	if err != nil {
		return "", fmt.Errorf("resolve host name: %w", err)
	}
	return now().Local().Format(TimestampLayout) + "_" + sanitizeHost(host) + ".csv", nil
}

// Write stores matches and returns the report path. With no matches it
// writes nothing and returns an empty path. The file is written to a
// temporary name and renamed into place, so a failed write leaves no report.
func (w *FileWriter) Write(matches []models.MatchRecord) (string, error) {
	if len(matches) == 0 {
		return "", nil
	}

	name, err := w.FileName()
	if err != nil {
		return "", &ReportWriteError{Path: w.Dir, Err: err}
	}
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &ReportWriteError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", &ReportWriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if err := writeCSV(tmp, Sorted(matches)); err != nil {
		tmp.Close()
		cleanup()
		return "", &ReportWriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", &ReportWriteError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", &ReportWriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", &ReportWriteError{Path: path, Err: err}
	}

	return path, nil
}

// sanitizeHost keeps host names usable as a file name component.
func sanitizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown-host"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, host)
}
