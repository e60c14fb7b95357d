// Package refs aggregates the reference each project was built at.
package refs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileName is the manifest written into the files/ category.
const FileName = "refs.txt"

// ErrManifestWritten is returned by a second WriteFile.
var ErrManifestWritten = errors.New("refs: manifest already written")

// Entry is one project and its resolved ref.
type Entry struct {
	Name string
	Ref  string
}

// Aggregator collects refs from concurrent workers. Recording a name twice
// keeps the last value.
type Aggregator struct {
	mu      sync.Mutex
	refs    map[string]string
	written bool
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{refs: make(map[string]string)}
}

// Record stores ref for name. Empty refs are ignored.
func (a *Aggregator) Record(name, ref string) {
	if ref == "" {
		return
	}
	a.mu.Lock()
	a.refs[name] = ref
	a.mu.Unlock()
}

// Snapshot returns the recorded entries sorted by name.
func (a *Aggregator) Snapshot() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, 0, len(a.refs))
	for name, ref := range a.refs {
		out = append(out, Entry{Name: name, Ref: ref})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Map returns a copy of the recorded refs.
func (a *Aggregator) Map() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.refs))
	for k, v := range a.refs {
		out[k] = v
	}
	return out
}

// WriteTo writes "name ref" lines sorted by name.
func (a *Aggregator) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, e := range a.Snapshot() {
		m, err := fmt.Fprintf(bw, "%s %s\n", e.Name, e.Ref)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// WriteFile writes the manifest to dir/refs.txt. It succeeds once per
// Aggregator, after all workers have joined.
func (a *Aggregator) WriteFile(dir string) (string, error) {
	a.mu.Lock()
	if a.written {
		a.mu.Unlock()
		return "", ErrManifestWritten
	}
	a.written = true
	a.mu.Unlock()

	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("refs: %w", err)
	}
	if _, err := a.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("refs: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("refs: writing %s: %w", path, err)
	}
	return path, nil
}
