package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/wesm/mailindex/internal/search"
	"github.com/wesm/mailindex/internal/textutil"
)

// SearchResult is one row matched by Search.
type SearchResult struct {
	Folder      string
	FileIndex   int64
	MessageID   string
	Subject     string
	SenderEmail string
	Timestamp   sql.NullTime
}

// escapeLike escapes LIKE wildcards for use with ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// ftsExpression turns text terms into an FTS5 MATCH expression. Each term is
// normalized the same way bodies are; multi-word terms become phrases and
// terms are ANDed. Returns "" when no term has a word token.
func ftsExpression(terms []string) string {
	var parts []string
	for _, term := range terms {
		if norm := textutil.Normalize(term); norm != "" {
			parts = append(parts, `"`+norm+`"`)
		}
	}
	return strings.Join(parts, " ")
}

func buildSearchConditions(q *search.Query, fts bool) (conditions []string, args []any, join string) {
	for _, addr := range q.FromAddrs {
		conditions = append(conditions, `m.sender_email LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(addr)+"%")
	}
	for _, addr := range q.ToAddrs {
		conditions = append(conditions, `m.recipients LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(addr)+"%")
	}
	for _, term := range q.SubjectTerms {
		conditions = append(conditions, `m.subject LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(term)+"%")
	}
	if len(q.Folders) > 0 {
		var ors []string
		for _, f := range q.Folders {
			ors = append(ors, `(m.folder = ? OR m.folder LIKE ? ESCAPE '\')`)
			args = append(args, f, escapeLike(f)+"/%")
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}

	if q.AfterDate != nil {
		conditions = append(conditions, "m.timestamp >= ?")
		args = append(args, q.AfterDate.UTC().Format("2006-01-02 15:04:05"))
	}
	if q.BeforeDate != nil {
		conditions = append(conditions, "m.timestamp < ?")
		args = append(args, q.BeforeDate.UTC().Format("2006-01-02 15:04:05"))
	}

	// Full-text search: use FTS5 if available, fall back to LIKE
	if len(q.TextTerms) > 0 {
		if fts {
			if expr := ftsExpression(q.TextTerms); expr != "" {
				join = "JOIN mails_fts fts ON fts.rowid = m.id"
				conditions = append(conditions, "mails_fts MATCH ?")
				args = append(args, expr)
			}
		} else {
			for _, term := range q.TextTerms {
				norm := textutil.Normalize(term)
				if norm == "" {
					continue
				}
				conditions = append(conditions, `m.body_normalized LIKE ? ESCAPE '\'`)
				args = append(args, "%"+escapeLike(norm)+"%")
			}
		}
	}
	return conditions, args, join
}

// Search returns rows matching q ordered by folder and file index. A
// non-positive limit returns every match.
func (s *Store) Search(q *search.Query, limit int) ([]SearchResult, error) {
	conditions, args, join := buildSearchConditions(q, s.fts5Available)

	whereClause := strings.Join(conditions, " AND ")
	if whereClause == "" {
		whereClause = "1=1"
	}

	query := fmt.Sprintf(`
		SELECT m.folder, m.file_index, m.message_id,
		       COALESCE(m.subject, ''), COALESCE(m.sender_email, ''), m.timestamp
		FROM mails m
		%s
		WHERE %s
		ORDER BY m.folder, m.file_index`, join, whereClause)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Folder, &r.FileIndex, &r.MessageID, &r.Subject, &r.SenderEmail, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
