package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wesm/mailindex/internal/search"
)

var (
	searchLimit int
	searchTable bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed messages",
	Long: `Search the index using Gmail-like query syntax.

Supported operators:
  from:        Sender address prefix
  to:          Recipient substring
  subject:     Subject substring
  folder:      Folder or any folder below it
  before:      Messages before date (YYYY-MM-DD)
  after:       Messages on or after date (YYYY-MM-DD)
  newer:       Messages from the given month on (YYYY-MM)
  older:       Messages before the end of the given month (YYYY-MM)
  older_than:  Relative date (7d, 2w, 1m, 1y)
  newer_than:  Relative date

Bare words and "quoted phrases" search message bodies.

Results are grouped per folder as "folder: [file indexes]"; use --table for
one row per message.

Examples:
  mailindex search from:alice@example.com
  mailindex search folder:lists/go-nuts generics after:2021-01-01
  mailindex search '"exact phrase"' newer_than:30d`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := search.Parse(strings.Join(args, " "))
		if q.IsEmpty() {
			return fmt.Errorf("empty search query")
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		results, err := s.Search(q, searchLimit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No messages found.")
			return nil
		}
		if searchTable {
			writeTable(out, results)
			fmt.Fprintf(out, "\nShowing %d results\n", len(results))
			return nil
		}
		writeGrouped(out, results)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum number of results (0 for no limit)")
	searchCmd.Flags().BoolVar(&searchTable, "table", false, "Print one row per message")
}
