package models

// ThreatRecord is one row of the threat feed.
type ThreatRecord struct {
	Slug             string `json:"slug" toml:"slug"`
	Name             string `json:"name" toml:"name"`
	Title            string `json:"title" toml:"title"`
	CVE              string `json:"cve" toml:"cve"`
	CVSSScore        string `json:"cvss_score" toml:"cvss_score"`
	AffectedVersions string `json:"affected_versions" toml:"affected_versions"`
	Reference        string `json:"reference" toml:"reference"`
}

// String returns a human-readable representation
func (t ThreatRecord) String() string {
	if t.CVE == "" {
		return t.Slug + ": " + t.Title
	}
	return t.Slug + " (" + t.CVE + ")"
}
