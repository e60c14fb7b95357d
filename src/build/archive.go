package build

import "strings"

const versionPlaceholder = "{version}"

// ExpandArchiveName substitutes the packaging version into an archive
// name template.
//
// Supported templates:
//
//	{version}  → "0.4.2"
//
// Names without a placeholder are returned unchanged.
func ExpandArchiveName(name, version string) string {
	return strings.ReplaceAll(name, versionPlaceholder, version)
}

// ArchiveName expands base, calling version only when base needs it.
func ArchiveName(base string, version func() (string, error)) (string, error) {
	if !strings.Contains(base, versionPlaceholder) || version == nil {
		return base, nil
	}
	v, err := version()
	if err != nil {
		return "", err
	}
	return ExpandArchiveName(base, v), nil
}
