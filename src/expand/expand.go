// Package expand renders the deployment descriptor of a run from a
// template, once every archive and ref is known.
package expand

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Data is what a descriptor template can see.
type Data struct {
	RunID      string
	ReleaseTag string

	// Refs maps project name to the ref it was built at.
	Refs map[string]string

	// Archives maps an output category (tools, apps, files) to the sorted
	// file names it holds.
	Archives map[string][]string
}

// Render executes text as a template into w. Referencing a missing map key
// is an error so descriptors never silently lose a project.
func Render(w io.Writer, name, text string, data Data) error {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return fmt.Errorf("expand: parsing %s: %w", name, err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("expand: rendering %s: %w", name, err)
	}
	return nil
}

// File renders the template at templatePath into outputPath. Nothing is
// written when rendering fails.
func File(templatePath, outputPath string, data Data) error {
	text, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("expand: reading template: %w", err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, filepath.Base(templatePath), string(text), data); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("expand: writing %s: %w", outputPath, err)
	}
	return nil
}

// ScanArchives lists the regular files directly under root/<category>.
// Missing category directories yield empty lists.
func ScanArchives(root string, categories []string) (map[string][]string, error) {
	out := make(map[string][]string, len(categories))
	for _, c := range categories {
		entries, err := os.ReadDir(filepath.Join(root, c))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("expand: scanning %s: %w", c, err)
		}
		names := []string{}
		for _, e := range entries {
			if e.Type().IsRegular() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		out[c] = names
	}
	return out, nil
}
