package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TempDir returns the folder swept by CleanTempFiles.
func (t *Tasks) TempDir() string {
	return filepath.Join(t.cfg.UploadFolder, "temp")
}

// CleanTempFiles removes entries of the temp upload folder last modified
// more than MaxTempAge ago. A failure on one entry is logged and the sweep
// moves on.
func (t *Tasks) CleanTempFiles(ctx context.Context) error {
	dir := t.TempDir()
	t.logger.InfoContext(ctx, "starting temporary file cleanup", "dir", dir)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		t.logger.InfoContext(ctx, "temp directory does not exist, nothing to clean", "dir", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read temp directory: %w", err)
	}

	cutoff := t.now().Add(-t.cfg.MaxTempAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			t.logger.ErrorContext(ctx, "failed to stat temp file", "path", path, "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := t.remove(path); err != nil {
			t.logger.ErrorContext(ctx, "failed to remove temp file", "path", path, "error", err)
			continue
		}
		removed++
	}

	t.logger.InfoContext(ctx, "cleaned temporary files", "count", removed)
	return nil
}
