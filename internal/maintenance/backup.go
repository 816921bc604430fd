package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fieldline/fieldline/internal"
	"github.com/klauspost/compress/gzip"
)

const backupPrefix = "backup_"

var errInMemoryDatabase = errors.New("in-memory sqlite database cannot be backed up")

// BackupDatabase is the scheduled form of Backup.
func (t *Tasks) BackupDatabase(ctx context.Context) error {
	_, err := t.Backup(ctx)
	return err
}

// Backup writes a gzip compressed backup named backup_YYYYMMDD_HHMMSS into
// BackupDir, then prunes backups older than BackupRetentionDays. It returns
// the path of the new file.
func (t *Tasks) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(t.cfg.BackupDir, 0o750); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	stamp := t.now().Format("20060102_150405")
	var ext string
	switch t.dbCfg.Driver {
	case internal.DriverSQLite:
		ext = ".db.gz"
	case internal.DriverPostgres:
		ext = ".dump.gz"
	default:
		return "", fmt.Errorf("unsupported database driver %q", t.dbCfg.Driver)
	}
	path := filepath.Join(t.cfg.BackupDir, backupPrefix+stamp+ext)

	if err := t.writeBackup(ctx, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	t.logger.InfoContext(ctx, "database backup created", "path", path, "driver", t.dbCfg.Driver)

	if err := t.pruneBackups(ctx); err != nil {
		t.logger.ErrorContext(ctx, "failed to prune old backups", "error", err)
	}
	return path, nil
}

func (t *Tasks) writeBackup(ctx context.Context, path string) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return err
	}

	switch t.dbCfg.Driver {
	case internal.DriverSQLite:
		err = copySQLite(t.dbCfg.Source, zw)
	default:
		err = t.dump(ctx, t.dbCfg.Source, zw)
	}
	if err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func copySQLite(dsn string, out io.Writer) error {
	path, err := sqlitePath(dsn)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	defer src.Close()

	_, err = io.Copy(out, src)
	return err
}

// sqlitePath strips the file: scheme and query options from a sqlite DSN.
func sqlitePath(dsn string) (string, error) {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return "", errInMemoryDatabase
	}
	return path, nil
}

// pgDump streams `pg_dump -F c` output for the given connection string.
func pgDump(ctx context.Context, dsn string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, "pg_dump", "-F", "c", "-b", "--dbname", dsn)
	cmd.Stdout = out
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (t *Tasks) pruneBackups(ctx context.Context) error {
	entries, err := os.ReadDir(t.cfg.BackupDir)
	if err != nil {
		return err
	}

	cutoff := t.now().AddDate(0, 0, -t.cfg.BackupRetentionDays)
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), backupPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(t.cfg.BackupDir, entry.Name())
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		t.logger.InfoContext(ctx, "deleted old backup", "file", entry.Name())
	}
	return errors.Join(errs...)
}
