package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/wesm/mailindex/internal/store"
)

var statsRuns int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long: `Show row counts for the index and the most recent index runs.

Orphans counts replies whose parent is not stored; a completed run never
leaves any.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		out := cmd.OutOrStdout()
		printStats(out, s.Path(), stats)

		if statsRuns <= 0 {
			return nil
		}
		runs, err := s.LastRuns(statsRuns)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) > 0 {
			fmt.Fprintln(out)
			printRuns(out, runs)
		}
		return nil
	},
}

func printStats(w io.Writer, dbPath string, stats *store.Stats) {
	fmt.Fprintf(w, "Database: %s\n", dbPath)
	fmt.Fprintf(w, "  Messages:    %s\n", humanize.Comma(stats.MailCount))
	fmt.Fprintf(w, "  Folders:     %s\n", humanize.Comma(stats.FolderCount))
	fmt.Fprintf(w, "  Replies:     %s\n", humanize.Comma(stats.ReplyCount))
	fmt.Fprintf(w, "  Synthetic:   %s\n", humanize.Comma(stats.SyntheticCount))
	fmt.Fprintf(w, "  Orphans:     %s\n", humanize.Comma(stats.OrphanCount))
	fmt.Fprintf(w, "  Runs:        %s\n", humanize.Comma(stats.RunCount))
	fmt.Fprintf(w, "  Size:        %s\n", humanize.Bytes(uint64(max(stats.DatabaseSize, 0))))
}

func printRuns(w io.Writer, runs []store.IndexRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tFOUND\tADDED\tERRORS\tREKEYED\tCLEARED")
	for _, r := range runs {
		status := r.Status
		if r.ErrorMessage.Valid && r.ErrorMessage.String != "" {
			status += ": " + truncateWidth(r.ErrorMessage.String, 40)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, humanize.Time(r.StartedAt), status,
			r.FilesFound, r.MessagesAdded, r.ParseErrors, r.Rekeyed, r.ParentsCleared)
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsRuns, "runs", 5, "Number of recent runs to show (0 to hide)")
}
