package reporter

import (
	"cmp"
	"slices"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// Reporter is the interface for output formatters
type Reporter interface {
	// Report generates output for the given matches
	Report(matches []models.MatchRecord) ([]byte, error)
}

// Get returns a reporter for the specified format
func Get(format string) Reporter {
	switch format {
	case "json":
		return &JSONReporter{}
	case "sarif":
		return &SARIFReporter{}
	case "csv":
		return &CSVReporter{}
	default:
		return &TerminalReporter{}
	}
}

// Sorted returns a copy of matches ordered by site, plugin, CVE and title.
// Scan results carry no order of their own; reporters sort so output is stable.
func Sorted(matches []models.MatchRecord) []models.MatchRecord {
	out := slices.Clone(matches)
	slices.SortStableFunc(out, func(a, b models.MatchRecord) int {
		return cmp.Or(
			cmp.Compare(a.SiteName, b.SiteName),
			cmp.Compare(a.PluginName, b.PluginName),
			cmp.Compare(a.CVE, b.CVE),
			cmp.Compare(a.ThreatTitle, b.ThreatTitle),
		)
	})
	return out
}
