package build

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Packaging versions come from a project's own metadata and name the
// archive; they are unrelated to the ref the sources were fetched at.

type pomFile struct {
	Version string `xml:"version"`
	Parent  struct {
		Version string `xml:"version"`
	} `xml:"parent"`
}

// MavenVersion reads project/version from dir/pom.xml, falling back to the
// parent version.
func MavenVersion(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "pom.xml"))
	if err != nil {
		return "", fmt.Errorf("build: reading pom.xml: %w", err)
	}
	var pom pomFile
	if err := xml.Unmarshal(data, &pom); err != nil {
		return "", fmt.Errorf("build: parsing pom.xml: %w", err)
	}
	v := strings.TrimSpace(pom.Version)
	if v == "" {
		v = strings.TrimSpace(pom.Parent.Version)
	}
	if v == "" {
		return "", fmt.Errorf("build: pom.xml in %s declares no version", dir)
	}
	return v, nil
}

// NodeVersion reads the version field of dir/package.json.
func NodeVersion(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", fmt.Errorf("build: reading package.json: %w", err)
	}
	var pkg struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("build: parsing package.json: %w", err)
	}
	if pkg.Version == "" {
		return "", fmt.Errorf("build: package.json in %s declares no version", dir)
	}
	return pkg.Version, nil
}

type pyproject struct {
	Project struct {
		Version string `toml:"version"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Version string `toml:"version"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// PythonVersion reads [project].version, or [tool.poetry].version, from
// dir/pyproject.toml.
func PythonVersion(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		return "", fmt.Errorf("build: reading pyproject.toml: %w", err)
	}
	var py pyproject
	if err := toml.Unmarshal(data, &py); err != nil {
		return "", fmt.Errorf("build: parsing pyproject.toml: %w", err)
	}
	switch {
	case py.Project.Version != "":
		return py.Project.Version, nil
	case py.Tool.Poetry.Version != "":
		return py.Tool.Poetry.Version, nil
	}
	return "", fmt.Errorf("build: pyproject.toml in %s declares no version", dir)
}
