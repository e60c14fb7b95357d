package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Refs layers reference overrides for projects that do not pin a snapshot.
// Precedence: project snapshot > CLI override > reference file > kind
// default > release tag.
type Refs struct {
	CLI        map[string]string
	File       map[string]string
	ReleaseTag string

	// KindDefaults replaces ReleaseTag for builder kinds whose refs live in
	// another namespace, such as catalog releases.
	KindDefaults map[string]string
}

// Resolve returns the ref a project should be built at, or "" when nothing
// pins it (the workspace then stays on its primary branch).
func (r Refs) Resolve(p Project) string {
	if p.Snapshot != "" {
		return p.Snapshot
	}
	if v, ok := r.CLI[p.Name]; ok && v != "" {
		return v
	}
	if v, ok := r.File[p.Name]; ok && v != "" {
		return v
	}
	if v, ok := r.KindDefaults[p.Builder]; ok {
		return v
	}
	return r.ReleaseTag
}

// Apply returns a copy of projects with Snapshot filled in from r.
func (r Refs) Apply(projects []Project) []Project {
	out := make([]Project, len(projects))
	for i, p := range projects {
		p.Snapshot = r.Resolve(p)
		out[i] = p
	}
	return out
}

// ParseRefs reads "name value" lines. Blank lines and lines starting with
// # are skipped; later lines win.
func ParseRefs(r io.Reader) (map[string]string, error) {
	refs := make(map[string]string)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("refs line %d: expected \"name value\", got %q", lineNo, line)
		}
		refs[fields[0]] = fields[1]
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// LoadRefsFile parses a reference file. An empty path yields no refs; a
// named file that does not exist is an error.
func LoadRefsFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("refs file %s does not exist", path)
		}
		return nil, err
	}
	defer f.Close()
	return ParseRefs(f)
}

// ParseRefOverrides parses repeated name=value CLI arguments.
func ParseRefOverrides(args []string) (map[string]string, error) {
	refs := make(map[string]string, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("invalid ref override %q (want name=value)", a)
		}
		refs[name] = value
	}
	return refs, nil
}
