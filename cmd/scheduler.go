package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fieldline/fieldline/pkg/logger"
	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Inspect and run maintenance tasks",
}

var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered maintenance tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		cfg.Scheduler.Enabled = true

		db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		sched, err := newScheduler(cfg, db, logger.LoggerWrapper())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEDULE\tNEXT RUN")
		for _, t := range sched.Tasks() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Schedule, t.NextRun.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var schedulerRunOnceCmd = &cobra.Command{
	Use:   "run-once <task>",
	Short: "Run one maintenance task immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		cfg.Scheduler.Enabled = true
		log := logger.LoggerWrapper()

		db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		sched, err := newScheduler(cfg, db, log)
		if err != nil {
			return err
		}

		if err := sched.RunTask(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("task %s failed: %w", args[0], err)
		}
		log.Info("task finished", "task", args[0])
		return nil
	},
}

func init() {
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunOnceCmd)
}
