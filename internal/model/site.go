package model

import "encoding/json"

// DefaultSiteName is used when the site configuration cannot be loaded.
const DefaultSiteName = "Blog"

// SiteConfig is the subset of the site configuration the assembly layer
// consumes. Unknown fields are ignored.
type SiteConfig struct {
	SiteName    string           `json:"siteName"`
	IconURL     string           `json:"iconUrl,omitempty"`
	Description string           `json:"description,omitempty"`
	Keywords    []string         `json:"keywords,omitempty"`
	FooterHTML  string           `json:"footerHtml,omitempty"`
	NavLinks    []map[string]any `json:"navLinks,omitempty"`
}

// DefaultSiteConfig keeps the first screen usable when /config is down.
func DefaultSiteConfig() *SiteConfig {
	return &SiteConfig{SiteName: DefaultSiteName}
}

// ParseSiteConfig decodes a site configuration, filling in the site name
// when the server omitted it.
func ParseSiteConfig(raw json.RawMessage) (*SiteConfig, bool) {
	if isNullJSON(raw) {
		return nil, false
	}
	var sc SiteConfig
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, false
	}
	if sc.SiteName == "" {
		sc.SiteName = DefaultSiteName
	}
	return &sc, true
}

// VersionInfo is the heartbeat payload. The counters increase whenever the
// server reindexes documents or reloads its configuration.
type VersionInfo struct {
	DocsVersion   int64 `json:"docsVersion"`
	ConfigVersion int64 `json:"configVersion"`
}

type versionWire struct {
	DocsVersion   *int64 `json:"docsVersion"`
	ConfigVersion int64  `json:"configVersion"`
}

// ParseVersion decodes a heartbeat payload. A payload without docsVersion
// is not a heartbeat.
func ParseVersion(raw json.RawMessage) (VersionInfo, bool) {
	if isNullJSON(raw) {
		return VersionInfo{}, false
	}
	var w versionWire
	if err := json.Unmarshal(raw, &w); err != nil || w.DocsVersion == nil {
		return VersionInfo{}, false
	}
	return VersionInfo{DocsVersion: *w.DocsVersion, ConfigVersion: w.ConfigVersion}, true
}
