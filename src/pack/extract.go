package pack

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mholt/archives"
)

// Extract unpacks the archive at src into dest. The format (tar.gz,
// tar.xz, zip, ...) is identified from the name and content. Entries that
// would land outside dest are rejected.
func Extract(ctx context.Context, src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("pack: extract %s: %w", src, err)
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, filepath.Base(src), f)
	if err != nil {
		return fmt.Errorf("pack: identify %s: %w", src, err)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("pack: %s is not an extractable archive", src)
	}

	// Identification consumed part of the file; zip also needs ReaderAt.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("pack: extract %s: %w", src, err)
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("pack: extract into %s: %w", dest, err)
	}

	err = ex.Extract(ctx, f, func(ctx context.Context, fi archives.FileInfo) error {
		target, err := Within(root, fi.NameInArchive)
		if err != nil {
			return err
		}
		switch {
		case fi.IsDir():
			return os.MkdirAll(target, 0o755)
		case fi.Mode()&fs.ModeSymlink != 0:
			if filepath.IsAbs(fi.LinkTarget) {
				return nil
			}
			if _, err := Within(root, filepath.Join(filepath.Dir(fi.NameInArchive), fi.LinkTarget)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(fi.LinkTarget, target)
		case !fi.Mode().IsRegular():
			return nil
		}
		return writeEntry(fi, target)
	})
	if err != nil {
		return fmt.Errorf("pack: extract %s: %w", src, err)
	}
	return nil
}

func writeEntry(fi archives.FileInfo, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := fi.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
