package artifact

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// DirWriter returns a WriteFunc that stores outputs under dir on fsys.
// Each output is written to a temporary file and renamed into place, so a
// reader never sees a partial artifact.
func DirWriter(fsys afero.Fs, dir string) WriteFunc {
	return func(output string, data []byte) (string, error) {
		dst := filepath.Join(dir, filepath.FromSlash(output))
		if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}

		tmp := dst + ".tmp"
		if err := afero.WriteFile(fsys, tmp, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write temp output: %w", err)
		}
		if err := fsys.Rename(tmp, dst); err != nil {
			_ = fsys.Remove(tmp)
			return "", fmt.Errorf("failed to rename output: %w", err)
		}

		abs, err := filepath.Abs(dst)
		if err != nil {
			return dst, nil
		}
		return abs, nil
	}
}
