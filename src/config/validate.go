package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Validate checks the structural invariants of a loaded Config against the
// registered builder kinds. Returns warnings (soft issues) and a hard error
// if the config cannot be built.
func Validate(cfg *Config, kinds []string) (warnings []string, err error) {
	var errs []string

	known := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		known[k] = true
	}

	if len(cfg.Applications) == 0 {
		errs = append(errs, "applications: at least one project is required")
	}

	seen := make(map[string]int)
	for i, p := range cfg.Applications {
		path := fmt.Sprintf("applications[%d]", i)

		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: name is required", path))
		} else {
			if strings.ContainsAny(p.Name, `/\`) || p.Name == "." || p.Name == ".." {
				errs = append(errs, fmt.Sprintf("%s: name %q must be a single path element", path, p.Name))
			}
			if prev, dup := seen[p.Name]; dup {
				warnings = append(warnings, fmt.Sprintf("%s: duplicate name %q (also applications[%d]); the last build wins", path, p.Name, prev))
			}
			seen[p.Name] = i
		}

		if p.Builder == "" {
			errs = append(errs, fmt.Sprintf("%s: builder is required", path))
		} else if len(known) > 0 && !known[p.Builder] {
			sorted := append([]string(nil), kinds...)
			sort.Strings(sorted)
			errs = append(errs, fmt.Sprintf("%s: unknown builder %q (supported: %s)", path, p.Builder, strings.Join(sorted, ", ")))
		}

		switch p.Builder {
		case "release":
			if p.URL == "" {
				errs = append(errs, fmt.Sprintf("%s: builder release requires url", path))
			}
		case "atk":
			if p.TarName == "" {
				errs = append(errs, fmt.Sprintf("%s: builder atk requires tar_name", path))
			}
		}

		for j, item := range p.Items {
			if filepath.IsAbs(item) || escapes(item) {
				errs = append(errs, fmt.Sprintf("%s.items[%d]: %q must stay inside the workspace", path, j, item))
			}
		}
	}

	if cfg.Settings.Workers < 0 {
		errs = append(errs, fmt.Sprintf("settings.workers: must be >= 0, got %d", cfg.Settings.Workers))
	}
	if cfg.Settings.Output == "" {
		errs = append(errs, "settings.output: is required")
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

func escapes(rel string) bool {
	clean := filepath.Clean(filepath.FromSlash(rel))
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
