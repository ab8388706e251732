// Package feed loads threat records from the semicolon-delimited threat feed.
package feed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// Parser is the interface for threat feed parsers
type Parser interface {
	// CanParse returns true if this parser can handle the given filename
	CanParse(filename string) bool

	// Parse extracts threat records from the file content
	Parse(source string, content []byte) ([]models.ThreatRecord, error)
}

var (
	// ErrEmptyFeed is returned for a feed without a header row.
	ErrEmptyFeed = errors.New("feed has no header row")
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
)

// MalformedFeedError reports a feed whose shape does not match its header.
type MalformedFeedError struct {
	Path     string
	Line     int // 1-based line (CSV) or entry (TOML); 0 when not tied to one
	Expected int // fields named by the header
	Got      int // fields found in the row
	Err      error
}

func (e *MalformedFeedError) Error() string {
	where := e.Path
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed feed %s: %v", where, e.Err)
	}
	return fmt.Sprintf("malformed feed %s: expected %d fields, got %d", where, e.Expected, e.Got)
}

func (e *MalformedFeedError) Unwrap() error {
	return e.Err
}

// GetAllParsers returns all available parsers. The last one accepts any
// file name.
func GetAllParsers() []Parser {
	return []Parser{
		&TOMLParser{},
		&CSVParser{},
	}
}

// Load reads the feed at path and returns its records in feed order.
func Load(path string) ([]models.ThreatRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read threat feed: %w", err)
	}

	filename := filepath.Base(path)
	for _, parser := range GetAllParsers() {
		if parser.CanParse(filename) {
			return parser.Parse(path, content)
		}
	}

	return nil, fmt.Errorf("no parser for threat feed %s", path)
}
