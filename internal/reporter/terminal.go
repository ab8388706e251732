package reporter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
	"github.com/fatih/color"
)

// TerminalReporter outputs matches in a human-readable terminal format
type TerminalReporter struct{}

var (
	headingColor  = color.New(color.FgRed, color.Bold)
	siteColor     = color.New(color.FgCyan, color.Bold)
	criticalColor = color.New(color.FgRed)
	mediumColor   = color.New(color.FgYellow)
	lowColor      = color.New(color.FgGreen)
)

// Report generates terminal output for the given matches
func (r *TerminalReporter) Report(matches []models.MatchRecord) ([]byte, error) {
	if len(matches) == 0 {
		return []byte("No vulnerable plugins found across all sites.\n"), nil
	}

	sorted := Sorted(matches)
	summary := summarize(sorted)

	var sb strings.Builder

	sb.WriteString("\n" + headingColor.Sprint("VULNERABLE PLUGINS FOUND") + "\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")
	sb.WriteString(fmt.Sprintf("Found %d matches in %d plugins across %d sites\n\n",
		summary.TotalMatches, summary.AffectedPlugins, summary.AffectedSites))

	currentSite := ""
	for _, m := range sorted {
		if m.SiteName != currentSite {
			if currentSite != "" {
				sb.WriteString(strings.Repeat("-", 60) + "\n")
			}
			currentSite = m.SiteName
			sb.WriteString(siteColor.Sprintf("Site: %s", m.SiteName) + "\n")
		}

		sb.WriteString(fmt.Sprintf("\n   %s %s\n", m.PluginName, m.InstalledVersion))
		title := m.ThreatTitle
		if len(title) > 100 {
			title = title[:97] + "..."
		}
		sb.WriteString(fmt.Sprintf("      %s\n", title))

		var details []string
		if m.CVE != "" {
			details = append(details, m.CVE)
		}
		if m.CVSSScore != "" {
			details = append(details, severityColor(m.CVSSScore).Sprintf("CVSS %s", m.CVSSScore))
		}
		if len(details) > 0 {
			sb.WriteString("      " + strings.Join(details, " | ") + "\n")
		}
		if m.Reference != "" {
			sb.WriteString(fmt.Sprintf("      Reference: %s\n", m.Reference))
		}
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

func severityColor(cvss string) *color.Color {
	score, err := strconv.ParseFloat(strings.TrimSpace(cvss), 64)
	switch {
	case err != nil:
		return mediumColor
	case score >= 7.0:
		return criticalColor
	case score >= 4.0:
		return mediumColor
	default:
		return lowColor
	}
}
