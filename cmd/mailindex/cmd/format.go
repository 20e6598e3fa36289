package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/wesm/mailindex/internal/store"
)

// truncateWidth truncates s to fit within maxWidth terminal cells. Newlines
// and tabs are flattened so a value never breaks a table row.
func truncateWidth(s string, maxWidth int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")

	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// padWidth right-pads s with spaces to width terminal cells.
func padWidth(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// folderHits is the list of matching file indexes in one folder.
type folderHits struct {
	Folder  string
	Indexes []int64
}

// groupByFolder collapses results, already ordered by folder and file
// index, into one entry per folder.
func groupByFolder(results []store.SearchResult) []folderHits {
	var groups []folderHits
	for _, r := range results {
		if n := len(groups); n > 0 && groups[n-1].Folder == r.Folder {
			groups[n-1].Indexes = append(groups[n-1].Indexes, r.FileIndex)
			continue
		}
		groups = append(groups, folderHits{Folder: r.Folder, Indexes: []int64{r.FileIndex}})
	}
	return groups
}

// writeGrouped prints one "folder: [1, 4, 9]" line per folder.
func writeGrouped(w io.Writer, results []store.SearchResult) {
	for _, g := range groupByFolder(results) {
		idx := make([]string, len(g.Indexes))
		for i, n := range g.Indexes {
			idx[i] = strconv.FormatInt(n, 10)
		}
		fmt.Fprintf(w, "%s: [%s]\n", g.Folder, strings.Join(idx, ", "))
	}
}

const (
	colLocation = 24
	colDate     = 10
	colFrom     = 28
	colSubject  = 50
)

// writeTable prints results as fixed-width columns. Widths are measured in
// terminal cells so CJK subjects stay aligned.
func writeTable(w io.Writer, results []store.SearchResult) {
	row := func(loc, date, from, subject string) {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			padWidth(truncateWidth(loc, colLocation), colLocation),
			padWidth(date, colDate),
			padWidth(truncateWidth(from, colFrom), colFrom),
			truncateWidth(subject, colSubject))
	}
	row("LOCATION", "DATE", "FROM", "SUBJECT")
	for _, r := range results {
		date := "-"
		if r.Timestamp.Valid {
			date = r.Timestamp.Time.Format("2006-01-02")
		}
		row(r.Folder+"/"+strconv.FormatInt(r.FileIndex, 10), date, r.SenderEmail, r.Subject)
	}
}
