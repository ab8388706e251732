package models

// MatchRecord is a plugin installation whose version falls inside a threat's
// affected range.
type MatchRecord struct {
	SiteName         string `json:"site_name"`
	PluginName       string `json:"plugin_name"` // Threat's display name
	InstalledVersion string `json:"installed_version"`
	ThreatTitle      string `json:"threat_title"`
	CVE              string `json:"cve"`
	CVSSScore        string `json:"cvss_score"`
	Reference        string `json:"reference"`

	// PluginPath is the plugin directory on disk. It is not part of the
	// report file.
	PluginPath string `json:"plugin_path,omitempty"`
}

// NewMatch builds a MatchRecord for an installation and the threat it matched.
func NewMatch(p PluginInstallation, t ThreatRecord) MatchRecord {
	return MatchRecord{
		SiteName:         p.SiteName,
		PluginName:       t.Name,
		InstalledVersion: p.InstalledVersion,
		ThreatTitle:      t.Title,
		CVE:              t.CVE,
		CVSSScore:        t.CVSSScore,
		Reference:        t.Reference,
		PluginPath:       p.Path,
	}
}

// Fields returns the report columns in header order.
func (m MatchRecord) Fields() []string {
	return []string{
		m.SiteName,
		m.PluginName,
		m.InstalledVersion,
		m.ThreatTitle,
		m.CVE,
		m.CVSSScore,
		m.Reference,
	}
}

// ReportHeader lists the report columns in order.
var ReportHeader = []string{
	"Site Name",
	"Plugin Name",
	"Installed Version",
	"Threat Title",
	"CVE",
	"CVSS Score",
	"Reference",
}
