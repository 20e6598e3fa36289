package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/wesm/mailindex/internal/extract"
	"github.com/wesm/mailindex/internal/indexer"
)

var (
	indexWorkers        int
	indexSkipMissingID  bool
	indexFallbackDomain string
	indexNoProgress     bool
)

var indexCmd = &cobra.Command{
	Use:   "index [root]",
	Short: "Index new messages under a corpus root",
	Long: `Scan a corpus root for message files that are not yet in the database,
parse them in parallel and store them in a single transaction.

The root defaults to [corpus].root from config.toml. Files whose name is not
purely numeric are ignored, as are hidden directories. A message without a
Message-ID gets a synthesized one unless --skip-missing-id is set.

Interrupting a run with Ctrl+C writes nothing; run the command again to
resume from the last completed run.

Examples:
  mailindex index
  mailindex index ~/Mail --workers 4
  mailindex index /srv/archive --skip-missing-id`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cfg.Corpus.Root
		if len(args) == 1 {
			root = args[0]
		}
		if root == "" {
			return fmt.Errorf("no corpus root: pass one or set [corpus].root in %s", cfg.ConfigFilePath())
		}
		if cmd.Flags().Changed("workers") && indexWorkers < 0 {
			return fmt.Errorf("--workers must be >= 0")
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		opts := indexOptions()
		if cmd.Flags().Changed("workers") {
			opts.Workers = indexWorkers
		}
		if cmd.Flags().Changed("skip-missing-id") {
			opts.Parse.SkipMissingID = indexSkipMissingID
		}
		if cmd.Flags().Changed("fallback-domain") {
			opts.Parse.FallbackDomain = indexFallbackDomain
		}
		if !indexNoProgress && isatty.IsTerminal(os.Stderr.Fd()) {
			p := newProgressPrinter(os.Stderr)
			opts.Progress = p.update
			defer p.finish()
		}

		summary, err := indexer.Run(cmd.Context(), s, root, opts)
		if err != nil {
			if cmd.Context().Err() != nil {
				fmt.Fprintln(os.Stderr, "\nInterrupted. Nothing was written.")
			}
			return err
		}

		printSummary(cmd.OutOrStdout(), summary)
		return nil
	},
}

// indexOptions builds run options from the loaded configuration.
func indexOptions() indexer.Options {
	return indexer.Options{
		Workers:         cfg.Index.Workers,
		MaxMessageBytes: cfg.MaxMessageBytes(),
		Logger:          logger,
		Parse: indexer.ParseOptions{
			FallbackDomain: cfg.Index.FallbackDomain,
			SkipMissingID:  cfg.Index.SkipMissingID,
			Extractor:      extract.New(cfg.Extract.Command, cfg.ExtractTimeout()),
			ExtractTimeout: cfg.ExtractTimeout(),
		},
	}
}

// runIndex opens the store and runs one pass over root. It is the
// scheduler's callback for watch.
func runIndex(ctx context.Context, root string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = indexer.Run(ctx, s, root, indexOptions())
	return err
}

func printSummary(w io.Writer, s *indexer.Summary) {
	fmt.Fprintf(w, "Indexed %d new messages in %s\n", s.Added, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Files found:     %d\n", s.FilesFound)
	fmt.Fprintf(w, "  Parse errors:    %d\n", s.ParseErrors)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped (no id): %d\n", s.Skipped)
	}
	fmt.Fprintf(w, "  Rekeyed:         %d\n", s.Rekeyed)
	fmt.Fprintf(w, "  Parents cleared: %d\n", s.ParentsCleared)
	fmt.Fprintf(w, "  Workers:         %d\n", s.Workers)
}

// progressPrinter redraws a single status line. update is called from
// worker goroutines.
type progressPrinter struct {
	w io.Writer

	mu      sync.Mutex
	last    time.Time
	drawn   bool
	started time.Time
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, started: time.Now()}
}

func (p *progressPrinter) update(done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if done < total && now.Sub(p.last) < 100*time.Millisecond {
		return
	}
	p.last = now
	p.drawn = true

	pct := 100
	if total > 0 {
		pct = int(done * 100 / total)
	}
	fmt.Fprintf(p.w, "\r  Parsing: %d/%d (%3d%%) %s   ", done, total, pct, now.Sub(p.started).Round(time.Second))
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().IntVarP(&indexWorkers, "workers", "w", 0, "Parser goroutines (default: [index].workers, or one per CPU)")
	indexCmd.Flags().BoolVar(&indexSkipMissingID, "skip-missing-id", false, "Skip messages without a Message-ID instead of synthesizing one")
	indexCmd.Flags().StringVar(&indexFallbackDomain, "fallback-domain", "", "Domain for synthesized identifiers (default: [index].fallback_domain)")
	indexCmd.Flags().BoolVar(&indexNoProgress, "no-progress", false, "Disable the progress line")
}
