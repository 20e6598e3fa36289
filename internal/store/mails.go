package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/wesm/mailindex/internal/corpus"
)

var (
	// ErrDuplicateID is returned when a message_id is already stored.
	ErrDuplicateID = errors.New("message id already stored")
	// ErrFileIndexed is returned when the (folder, file_index) pair is already stored.
	ErrFileIndexed = errors.New("file already indexed")
	// ErrParentMissing is returned when a row references a parent that is not stored.
	ErrParentMissing = errors.New("parent not stored")
)

// Mail is one stored message.
type Mail struct {
	ID             int64
	MessageID      string
	Subject        string
	Body           string
	BodyNormalized string
	Timestamp      sql.NullTime
	Sender         string
	SenderEmail    string
	Recipients     string
	Folder         string
	FileIndex      int64
	Parent         sql.NullString
	SyntheticID    bool
}

// Key returns the corpus position the row was indexed from.
func (m *Mail) Key() corpus.Key {
	return corpus.Key{Folder: m.Folder, Seq: m.FileIndex}
}

const mailColumns = `id, message_id, subject, body, body_normalized, timestamp,
	sender, sender_email, recipients, folder, file_index, parent, synthetic_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMail(r rowScanner) (*Mail, error) {
	var m Mail
	var subject, body, norm, sender, senderEmail, recipients sql.NullString
	if err := r.Scan(
		&m.ID, &m.MessageID, &subject, &body, &norm, &m.Timestamp,
		&sender, &senderEmail, &recipients, &m.Folder, &m.FileIndex, &m.Parent, &m.SyntheticID,
	); err != nil {
		return nil, err
	}
	m.Subject = subject.String
	m.Body = body.String
	m.BodyNormalized = norm.String
	m.Sender = sender.String
	m.SenderEmail = senderEmail.String
	m.Recipients = recipients.String
	return &m, nil
}

// Seen is the set of already-stored files and identifiers, loaded once at
// the start of a run.
type Seen struct {
	Files map[corpus.Key]bool
	IDs   map[string]bool
}

// LoadSeen reads every stored (folder, file_index) pair and message_id.
func (s *Store) LoadSeen() (*Seen, error) {
	seen := &Seen{
		Files: make(map[corpus.Key]bool),
		IDs:   make(map[string]bool),
	}
	rows, err := s.db.Query(`SELECT message_id, folder, file_index FROM mails`)
	if err != nil {
		return nil, fmt.Errorf("load seen: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var key corpus.Key
		if err := rows.Scan(&id, &key.Folder, &key.Seq); err != nil {
			return nil, fmt.Errorf("load seen: scan: %w", err)
		}
		seen.IDs[id] = true
		seen.Files[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load seen: %w", err)
	}
	return seen, nil
}

// GetMail returns the row with the given message_id, or ErrNotFound.
func (s *Store) GetMail(messageID string) (*Mail, error) {
	row := s.db.QueryRow(`SELECT `+mailColumns+` FROM mails WHERE message_id = ?`, messageID)
	m, err := scanMail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mail %q: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mail %q: %w", messageID, err)
	}
	return m, nil
}

// Replies returns the rows whose parent is messageID, in corpus order.
func (s *Store) Replies(messageID string) ([]Mail, error) {
	rows, err := s.db.Query(`SELECT `+mailColumns+` FROM mails
		WHERE parent = ? ORDER BY folder, file_index`, messageID)
	if err != nil {
		return nil, fmt.Errorf("replies %q: %w", messageID, err)
	}
	return collectMails(rows)
}

func collectMails(rows *sql.Rows) ([]Mail, error) {
	defer rows.Close()
	var out []Mail
	for rows.Next() {
		m, err := scanMail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mail: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// CountMails returns the number of stored rows.
func (s *Store) CountMails() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM mails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count mails: %w", err)
	}
	return n, nil
}

// Tx is a write transaction opened by WithTx.
type Tx struct {
	tx     *sql.Tx
	insert *sql.Stmt
	exists *sql.Stmt
}

func (t *Tx) close() {
	if t.insert != nil {
		t.insert.Close()
	}
	if t.exists != nil {
		t.exists.Close()
	}
}

// InsertMail inserts m. Constraint failures are reported as ErrDuplicateID,
// ErrFileIndexed or ErrParentMissing.
func (t *Tx) InsertMail(ctx context.Context, m *Mail) error {
	if t.insert == nil {
		stmt, err := t.tx.PrepareContext(ctx, `
			INSERT INTO mails (message_id, subject, body, body_normalized, timestamp,
			                   sender, sender_email, recipients, folder, file_index,
			                   parent, synthetic_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		t.insert = stmt
	}

	res, err := t.insert.ExecContext(ctx,
		m.MessageID, m.Subject, m.Body, m.BodyNormalized, m.Timestamp,
		m.Sender, m.SenderEmail, m.Recipients, m.Folder, m.FileIndex,
		m.Parent, m.SyntheticID,
	)
	if err != nil {
		return classifyInsertError(m, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	return nil
}

func classifyInsertError(m *Mail, err error) error {
	switch {
	case isConstraint(err, sqlite3.ErrConstraintForeignKey):
		return fmt.Errorf("insert %q: %w: %q", m.MessageID, ErrParentMissing, m.Parent.String)
	case isConstraint(err, sqlite3.ErrConstraintUnique), isConstraint(err, sqlite3.ErrConstraintPrimaryKey):
		if isSQLiteError(err, "mails.folder") {
			return fmt.Errorf("insert %s: %w", m.Key(), ErrFileIndexed)
		}
		return fmt.Errorf("insert %q: %w", m.MessageID, ErrDuplicateID)
	default:
		return fmt.Errorf("insert %q: %w", m.MessageID, err)
	}
}

// MailExists reports whether a row with the given message_id is visible to
// the transaction.
func (t *Tx) MailExists(ctx context.Context, messageID string) (bool, error) {
	if t.exists == nil {
		stmt, err := t.tx.PrepareContext(ctx, `SELECT 1 FROM mails WHERE message_id = ?`)
		if err != nil {
			return false, fmt.Errorf("prepare exists: %w", err)
		}
		t.exists = stmt
	}
	var one int
	err := t.exists.QueryRowContext(ctx, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", messageID, err)
	}
	return true, nil
}
