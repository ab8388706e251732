package feed

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// TOMLParser parses feeds written as [[threat]] tables
type TOMLParser struct{}

// CanParse returns true for .toml files
func (p *TOMLParser) CanParse(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}

// tomlFeed represents the structure of a TOML threat feed
type tomlFeed struct {
	Threats []models.ThreatRecord `toml:"threat"`
}

// Parse extracts threat records from TOML content
func (p *TOMLParser) Parse(source string, content []byte) ([]models.ThreatRecord, error) {
	var doc tomlFeed
	if _, err := toml.Decode(string(content), &doc); err != nil {
		return nil, &MalformedFeedError{Path: source, Err: err}
	}

	for i, t := range doc.Threats {
		if strings.TrimSpace(t.Slug) == "" {
			return nil, &MalformedFeedError{
				Path: source,
				Line: i + 1,
				Err:  fmt.Errorf("%w: %s", ErrMissingColumn, ColSlug),
			}
		}
		doc.Threats[i] = trimRecord(t)
	}

	return doc.Threats, nil
}

func trimRecord(t models.ThreatRecord) models.ThreatRecord {
	return models.ThreatRecord{
		Slug:             strings.TrimSpace(t.Slug),
		Name:             strings.TrimSpace(t.Name),
		Title:            strings.TrimSpace(t.Title),
		CVE:              strings.TrimSpace(t.CVE),
		CVSSScore:        strings.TrimSpace(t.CVSSScore),
		AffectedVersions: strings.TrimSpace(t.AffectedVersions),
		Reference:        strings.TrimSpace(t.Reference),
	}
}
