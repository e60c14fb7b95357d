// Package pack assembles build outputs into deployable zip archives and
// unpacks downloaded distributions.
package pack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Zip writes dest as a fresh archive holding items, each a path relative to
// workspace. Directories are expanded recursively; entry names are slash
// separated and relative to workspace. Empty items archives the whole
// workspace. A file already at dest is removed first, never merged.
//
// Returns the entry names written, in order.
func Zip(workspace string, items []string, dest string) ([]string, error) {
	root, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items = []string{"."}
	}

	files, err := collect(root, items, destAbs)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(destAbs), 0o755); err != nil {
		return nil, fmt.Errorf("pack: creating %s: %w", filepath.Dir(destAbs), err)
	}
	if err := os.Remove(destAbs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("pack: removing old %s: %w", destAbs, err)
	}

	out, err := os.Create(destAbs)
	if err != nil {
		return nil, fmt.Errorf("pack: creating %s: %w", destAbs, err)
	}

	zw := zip.NewWriter(out)
	names := make([]string, 0, len(files))
	for _, f := range files {
		if err := addFile(zw, f.abs, f.name); err != nil {
			zw.Close()
			out.Close()
			os.Remove(destAbs)
			return nil, err
		}
		names = append(names, f.name)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(destAbs)
		return nil, fmt.Errorf("pack: finishing %s: %w", destAbs, err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("pack: closing %s: %w", destAbs, err)
	}
	return names, nil
}

type entry struct {
	abs  string
	name string
}

// collector expands items into regular files. Symlinks are followed and
// archived under the link's own name.
type collector struct {
	root   string // workspace with symlinks resolved
	skip   string
	files  []entry
	seen   map[string]bool
	active map[string]bool // directories on the current descent
}

// collect expands items into regular files under root. .git directories
// and the destination archive itself are never included.
func collect(root string, items []string, skip string) ([]entry, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("pack: workspace %s: %w", root, err)
	}
	c := &collector{
		root:   resolved,
		skip:   skip,
		seen:   make(map[string]bool),
		active: make(map[string]bool),
	}

	for _, item := range items {
		abs, err := Within(root, item)
		if err != nil {
			return nil, err
		}
		info, err := os.Lstat(abs)
		if err != nil {
			return nil, fmt.Errorf("pack: item %q: %w", item, err)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return nil, err
		}
		name := filepath.ToSlash(rel)
		if name == "." {
			name = ""
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			err = c.link(abs, name)
		case info.IsDir():
			err = c.dir(abs, name)
		default:
			c.add(abs, name)
		}
		if err != nil {
			return nil, fmt.Errorf("pack: item %q: %w", item, err)
		}
	}
	return c.files, nil
}

func (c *collector) add(abs, name string) {
	if abs == c.skip || c.seen[name] {
		return
	}
	c.seen[name] = true
	c.files = append(c.files, entry{abs: abs, name: name})
}

// dir archives the tree at abs in lexical order, entries named under name.
func (c *collector) dir(abs, name string) error {
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return err
	}
	if !inside(c.root, resolved) {
		return fmt.Errorf("%s links outside the workspace", displayName(name))
	}
	if c.active[resolved] {
		return fmt.Errorf("%s: symlink loop", displayName(name))
	}
	c.active[resolved] = true
	defer delete(c.active, resolved)

	ents, err := os.ReadDir(abs)
	if err != nil {
		return err
	}
	for _, d := range ents {
		p := filepath.Join(abs, d.Name())
		n := d.Name()
		if name != "" {
			n = name + "/" + n
		}
		switch {
		case d.IsDir():
			if d.Name() == ".git" {
				continue
			}
			err = c.dir(p, n)
		case d.Type()&fs.ModeSymlink != 0:
			err = c.link(p, n)
		case d.Type().IsRegular():
			c.add(p, n)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// link archives what the symlink at abs points to under the link's name.
func (c *collector) link(abs, name string) error {
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%s: unresolvable symlink: %w", displayName(name), err)
	}
	switch {
	case info.IsDir():
		return c.dir(abs, name)
	case info.Mode().IsRegular():
		c.add(abs, name)
		return nil
	default:
		return fmt.Errorf("%s: symlink to %s", displayName(name), info.Mode().Type())
	}
}

func inside(root, path string) bool {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

func displayName(name string) string {
	if name == "" {
		return "."
	}
	return name
}

func addFile(zw *zip.Writer, abs, name string) error {
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("pack: %s: %w", name, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("pack: %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("pack: %s: %w", name, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("pack: %s: %w", name, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("pack: %s: %w", name, err)
	}
	return nil
}

// Within joins rel onto root and rejects results outside root.
func Within(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("pack: %q must be relative", rel)
	}
	joined := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, joined)
	if err != nil {
		return "", err
	}
	if r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("pack: %q escapes %s", rel, root)
	}
	return joined, nil
}

// CopyFile copies src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("pack: copy %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("pack: copy %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("pack: copy to %s: %w", dst, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("pack: copy to %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("pack: copy to %s: %w", dst, err)
	}
	return out.Close()
}
