package reporter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// SARIFReporter outputs matches in SARIF format for code scanning dashboards
type SARIFReporter struct{}

// SARIF structures
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ShortDescription sarifText       `json:"shortDescription"`
	Help             sarifText       `json:"help"`
	HelpURI          string          `json:"helpUri,omitempty"`
	DefaultConfig    sarifRuleConfig `json:"defaultConfiguration"`
	Properties       sarifProperties `json:"properties"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifRuleConfig struct {
	Level string `json:"level"`
}

type sarifProperties struct {
	Tags             []string `json:"tags"`
	SecuritySeverity string   `json:"security-severity,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             sarifText         `json:"message"`
	Locations           []sarifLocation   `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

// Report generates SARIF output for the given matches
func (r *SARIFReporter) Report(matches []models.MatchRecord) ([]byte, error) {
	sorted := Sorted(matches)
	rules, ruleIndexMap := r.buildRules(sorted)

	report := sarifReport{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:           "plugin-vuln-checker",
					Version:        "1.0.0",
					InformationURI: "https://github.com/ethanolivertroy/plugin-vuln-checker",
					Rules:          rules,
				},
			},
			Results: r.buildResults(sorted, ruleIndexMap),
		}},
	}

	return json.MarshalIndent(report, "", "  ")
}

// ruleID identifies the threat behind a match: its CVE, or the plugin and
// title when the feed row has none.
func ruleID(m models.MatchRecord) string {
	if m.CVE != "" {
		return m.CVE
	}
	return m.PluginName + ": " + m.ThreatTitle
}

// level maps a CVSS base score to a SARIF level.
func level(cvss string) (string, string) {
	score, err := strconv.ParseFloat(strings.TrimSpace(cvss), 64)
	if err != nil {
		return "warning", ""
	}
	severity := strconv.FormatFloat(score, 'f', 1, 64)
	switch {
	case score >= 7.0:
		return "error", severity
	case score >= 4.0:
		return "warning", severity
	default:
		return "note", severity
	}
}

func (r *SARIFReporter) buildRules(matches []models.MatchRecord) ([]sarifRule, map[string]int) {
	var rules []sarifRule
	ruleIndexMap := make(map[string]int)

	for _, m := range matches {
		id := ruleID(m)
		if _, exists := ruleIndexMap[id]; exists {
			continue
		}

		lvl, severity := level(m.CVSSScore)
		rule := sarifRule{
			ID:   id,
			Name: m.ThreatTitle,
			ShortDescription: sarifText{
				Text: fmt.Sprintf("%s: %s", m.PluginName, m.ThreatTitle),
			},
			Help: sarifText{
				Text: fmt.Sprintf("Update %s to a version outside the affected range.", m.PluginName),
			},
			HelpURI:       m.Reference,
			DefaultConfig: sarifRuleConfig{Level: lvl},
			Properties: sarifProperties{
				Tags:             []string{"security", "vulnerability", "plugin"},
				SecuritySeverity: severity,
			},
		}

		ruleIndexMap[id] = len(rules)
		rules = append(rules, rule)
	}

	return rules, ruleIndexMap
}

func (r *SARIFReporter) buildResults(matches []models.MatchRecord, ruleIndexMap map[string]int) []sarifResult {
	results := make([]sarifResult, 0, len(matches))

	for _, m := range matches {
		id := ruleID(m)
		lvl, _ := level(m.CVSSScore)

		msg := fmt.Sprintf("Site %s runs %s %s, affected by %s",
			m.SiteName, m.PluginName, m.InstalledVersion, m.ThreatTitle)
		if m.CVSSScore != "" {
			msg += fmt.Sprintf(" (CVSS %s)", m.CVSSScore)
		}

		uri := m.PluginPath
		if uri == "" {
			uri = m.SiteName
		}

		results = append(results, sarifResult{
			RuleID:    id,
			RuleIndex: ruleIndexMap[id],
			Level:     lvl,
			Message:   sarifText{Text: msg},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifact{URI: uri},
				},
			}},
			PartialFingerprints: map[string]string{
				"primaryLocationLineHash": fmt.Sprintf("%s:%s:%s:%s",
					m.SiteName, m.PluginName, m.InstalledVersion, id),
			},
		})
	}

	return results
}
