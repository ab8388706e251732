package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// Delimiter separates feed columns.
const Delimiter = ';'

// Column names the loader keys on.
const (
	ColSlug             = "slug"
	ColName             = "name"
	ColTitle            = "title"
	ColCVE              = "cve"
	ColCVSSScore        = "cvss_score"
	ColAffectedVersions = "affected_versions"
	ColReference        = "reference"
)

var requiredColumns = []string{
	ColSlug, ColName, ColTitle, ColCVE, ColCVSSScore, ColAffectedVersions, ColReference,
}

// CSVParser parses the semicolon-delimited feed. Columns are located by
// header name, so their physical order does not matter.
type CSVParser struct{}

// CanParse accepts any file; the delimited format is the default feed format
func (p *CSVParser) CanParse(filename string) bool {
	return true
}

// Parse extracts threat records from semicolon-delimited content
func (p *CSVParser) Parse(source string, content []byte) ([]models.ThreatRecord, error) {
	return ParseCSV(bytes.NewReader(content), source)
}

// ParseCSV reads a semicolon-delimited feed from r. source names the feed
// in errors.
func ParseCSV(r io.Reader, source string) ([]models.ThreatRecord, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1 // row width is checked against the header below

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MalformedFeedError{Path: source, Err: ErrEmptyFeed}
		}
		return nil, readError(source, err)
	}

	index, err := headerIndex(header)
	if err != nil {
		return nil, &MalformedFeedError{Path: source, Line: 1, Err: err}
	}

	var threats []models.ThreatRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(source, err)
		}

		if len(row) != len(header) {
			line, _ := reader.FieldPos(0)
			return nil, &MalformedFeedError{
				Path:     source,
				Line:     line,
				Expected: len(header),
				Got:      len(row),
			}
		}

		field := func(col string) string {
			return strings.TrimSpace(row[index[col]])
		}
		threats = append(threats, models.ThreatRecord{
			Slug:             field(ColSlug),
			Name:             field(ColName),
			Title:            field(ColTitle),
			CVE:              field(ColCVE),
			CVSSScore:        field(ColCVSSScore),
			AffectedVersions: field(ColAffectedVersions),
			Reference:        field(ColReference),
		})
	}

	return threats, nil
}

// headerIndex maps each required column to its position in header.
func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

// readError turns csv syntax errors into MalformedFeedError and passes
// I/O errors through.
func readError(source string, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &MalformedFeedError{Path: source, Line: parseErr.Line, Err: parseErr.Err}
	}
	return fmt.Errorf("read threat feed %s: %w", source, err)
}
