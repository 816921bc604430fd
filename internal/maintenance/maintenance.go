// Package maintenance holds the housekeeping jobs run by the scheduler.
package maintenance

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/scheduler"
	"github.com/jmoiron/sqlx"
)

// Task names as shown by `scheduler list` and accepted by `scheduler run-once`.
const (
	TaskCleanTempFiles = "clean_temp_files"
	TaskUsageStats     = "usage_stats"
	TaskBackupDatabase = "backup_database"
)

type Tasks struct {
	cfg    internal.SchedulerConfig
	dbCfg  internal.DatabaseConfig
	db     *sqlx.DB
	logger *slog.Logger

	now    func() time.Time
	remove func(path string) error
	dump   func(ctx context.Context, dsn string, out io.Writer) error
}

func NewTasks(cfg internal.SchedulerConfig, dbCfg internal.DatabaseConfig, db *sqlx.DB, logger *slog.Logger) *Tasks {
	return &Tasks{
		cfg:    cfg,
		dbCfg:  dbCfg,
		db:     db,
		logger: logger.With("component", "maintenance"),
		now:    time.Now,
		remove: os.RemoveAll,
		dump:   pgDump,
	}
}

// Register adds the maintenance jobs to s. The backup job is only added when
// enabled in the configuration.
func Register(s *scheduler.Scheduler, t *Tasks) error {
	if err := s.AddDailyTask(t.CleanTempFiles, t.cfg.CleanupTime, TaskCleanTempFiles); err != nil {
		return err
	}
	if err := s.AddTask(t.UsageStats, t.cfg.StatsInterval, TaskUsageStats); err != nil {
		return err
	}
	if t.cfg.BackupEnabled {
		if err := s.AddDailyTask(t.BackupDatabase, t.cfg.BackupTime, TaskBackupDatabase); err != nil {
			return err
		}
	}
	return nil
}
