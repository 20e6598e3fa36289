// Package indexer parses a mail corpus in parallel and persists the results
// with collision-safe identifiers and parent-before-child ordering.
package indexer

import (
	"database/sql"
	"strings"
	"time"

	"github.com/wesm/mailindex/internal/corpus"
	"github.com/wesm/mailindex/internal/store"
)

// Record is one parsed message, ready to be written.
type Record struct {
	ID          string // Collision-resolved identifier
	DeclaredID  string // Identifier before any rekeying
	SyntheticID bool   // ID was derived from folder and sequence number

	Subject        string
	SenderDisplay  string
	SenderEmail    string
	Recipients     []string // Sorted, de-duplicated, lowercased
	Timestamp      *time.Time
	Body           string
	NormalizedBody string

	Folder   string
	Seq      int64
	ParentID string // Empty when the message is not a reply
}

// Key returns the corpus position of the record's file.
func (r *Record) Key() corpus.Key {
	return corpus.Key{Folder: r.Folder, Seq: r.Seq}
}

// Mail converts the record into its stored form.
func (r *Record) Mail() *store.Mail {
	m := &store.Mail{
		MessageID:      r.ID,
		Subject:        r.Subject,
		Body:           r.Body,
		BodyNormalized: r.NormalizedBody,
		Sender:         r.SenderDisplay,
		SenderEmail:    r.SenderEmail,
		Recipients:     strings.Join(r.Recipients, ", "),
		Folder:         r.Folder,
		FileIndex:      r.Seq,
		SyntheticID:    r.SyntheticID,
	}
	if r.Timestamp != nil {
		m.Timestamp = sql.NullTime{Time: r.Timestamp.UTC(), Valid: true}
	}
	if r.ParentID != "" {
		m.Parent = sql.NullString{String: r.ParentID, Valid: true}
	}
	return m
}
