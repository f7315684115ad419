package util

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

const (
	CopySuffix = ".copy"
	FileMode   = 0o644
)

// CopyFile copies src to dst through a temporary sibling file, so dst is either
// absent, untouched or complete.
func CopyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open source: %w", err)
	}
	defer in.Close()

	tmp := dst + CopySuffix
	out, err := fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, FileMode)
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		fs.Remove(tmp)

		return fmt.Errorf("cannot copy %s: %w", src, err)
	}

	if err := out.Close(); err != nil {
		fs.Remove(tmp)

		return fmt.Errorf("cannot close temp file: %w", err)
	}

	if err := fs.Rename(tmp, dst); err != nil {
		fs.Remove(tmp)

		return fmt.Errorf("cannot rename temp file: %w", err)
	}

	return nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(fs afero.Fs, path string) bool {
	if path == "" {
		return false
	}

	stat, err := fs.Stat(path)
	if err != nil {
		return false
	}

	return !stat.IsDir()
}
