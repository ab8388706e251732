package models

// UnknownVersion is reported when a plugin's version cannot be determined.
const UnknownVersion = "Unknown"

// PluginInstallation represents one installed plugin directory of a site
type PluginInstallation struct {
	Path             string // Filesystem location of the plugin directory
	SiteName         string // Owning site, relative to the scan root
	Slug             string // Case-folded directory name
	InstalledVersion string // Extracted version or UnknownVersion
}

// String returns a human-readable representation
func (p PluginInstallation) String() string {
	return p.SiteName + "/" + p.Slug + "@" + p.InstalledVersion
}
