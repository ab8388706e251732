package reporter

import (
	"encoding/json"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// JSONReporter outputs matches in JSON format
type JSONReporter struct{}

// jsonOutput represents the JSON output structure
type jsonOutput struct {
	Summary jsonSummary          `json:"summary"`
	Matches []models.MatchRecord `json:"matches"`
}

type jsonSummary struct {
	TotalMatches    int `json:"total_matches"`
	AffectedSites   int `json:"affected_sites"`
	AffectedPlugins int `json:"affected_plugins"`
	UniqueCVEs      int `json:"unique_cves"`
}

// Report generates JSON output for the given matches
func (r *JSONReporter) Report(matches []models.MatchRecord) ([]byte, error) {
	sorted := Sorted(matches)
	if sorted == nil {
		sorted = []models.MatchRecord{}
	}

	return json.MarshalIndent(jsonOutput{
		Summary: summarize(sorted),
		Matches: sorted,
	}, "", "  ")
}

func summarize(matches []models.MatchRecord) jsonSummary {
	sites := make(map[string]bool)
	plugins := make(map[string]bool)
	cves := make(map[string]bool)

	for _, m := range matches {
		sites[m.SiteName] = true
		plugins[m.SiteName+"\x00"+m.PluginName] = true
		if m.CVE != "" {
			cves[m.CVE] = true
		}
	}

	return jsonSummary{
		TotalMatches:    len(matches),
		AffectedSites:   len(sites),
		AffectedPlugins: len(plugins),
		UniqueCVEs:      len(cves),
	}
}
