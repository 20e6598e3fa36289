package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/mailindex/internal/scheduler"
)

var (
	watchCron string
	watchNow  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: "Re-index the corpus root on a cron schedule",
	Long: `Run index on a cron schedule until interrupted.

The schedule comes from --cron or, when [schedule].enabled is set, from
[schedule].cron in config.toml. Both accept five-field cron expressions as
well as descriptors like @hourly or @every 30m.
The root defaults to [corpus].root. A database indexes a single root; use a
separate --home for each corpus. A tick that arrives while the previous
pass is still running is skipped.

Examples:
  mailindex watch --cron "*/15 * * * *"
  mailindex watch --now ~/Mail`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := cfg.Schedule.Cron
		if cmd.Flags().Changed("cron") {
			expr = watchCron
		} else if expr != "" && !cfg.Schedule.Enabled {
			return fmt.Errorf("scheduled indexing is disabled: set [schedule].enabled = true in %s or pass --cron", cfg.ConfigFilePath())
		}
		if expr == "" {
			return fmt.Errorf("no schedule: pass --cron or set [schedule].cron in %s", cfg.ConfigFilePath())
		}
		if err := scheduler.ValidateCronExpr(expr); err != nil {
			return err
		}

		root := cfg.Corpus.Root
		if len(args) == 1 {
			root = args[0]
		}

		sched := scheduler.New(runIndex).WithLogger(logger)
		if err := sched.AddRoot(root, expr); err != nil {
			return err
		}
		sched.Start()

		if watchNow {
			if err := sched.Trigger(root); err != nil {
				logger.Warn("initial index not started", "root", root, "error", err)
			}
		}

		<-cmd.Context().Done()
		logger.Info("shutting down, waiting for running passes")
		select {
		case <-sched.Stop().Done():
		case <-time.After(30 * time.Second):
			logger.Warn("timed out waiting for running passes")
		}

		for _, st := range sched.Status() {
			if st.LastError != "" {
				logger.Info("last pass failed", "root", st.Root, "error", st.LastError)
			}
		}
		return cmd.Context().Err()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchCron, "cron", "", "Cron expression (default: [schedule].cron)")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Index the root once at startup")
}
