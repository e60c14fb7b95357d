package config

import "strings"

// Project describes one buildable unit. Name doubles as the workspace
// directory, the default archive base name and the refs manifest key.
type Project struct {
	Name    string `yaml:"name"`
	Builder string `yaml:"builder"`

	// Snapshot pins a commit, tag, branch or catalog release. Empty means
	// resolve through overrides and the global release tag.
	Snapshot string `yaml:"snapshot,omitempty"`

	// URL overrides the conventional <repos_url>/<name> origin. For the
	// release builder it is the file to download.
	URL string `yaml:"url,omitempty"`

	// ZipName overrides the archive base name. "{version}" expands to the
	// packaging version read from the project's own metadata.
	ZipName string `yaml:"zip_name,omitempty"`

	// Items lists workspace-relative paths to archive, in order. Empty
	// means the whole workspace.
	Items []string `yaml:"items,omitempty"`

	// TarName is the artifact file name inside the catalog (atk builder).
	TarName string `yaml:"tar_name,omitempty"`

	// ExtraFiles are copied into the workspace root before packaging.
	ExtraFiles []string `yaml:"extra_files,omitempty"`
}

// ArchiveBase returns the archive name without extension.
func (p Project) ArchiveBase() string {
	if p.ZipName != "" {
		return strings.TrimSuffix(p.ZipName, ".zip")
	}
	return p.Name
}

// SourceURL returns the explicit origin or the convention reposURL/name.
func (p Project) SourceURL(reposURL string) string {
	if p.URL != "" {
		return p.URL
	}
	if reposURL == "" {
		return ""
	}
	return strings.TrimSuffix(reposURL, "/") + "/" + p.Name
}
