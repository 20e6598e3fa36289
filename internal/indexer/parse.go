package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wesm/mailindex/internal/corpus"
	"github.com/wesm/mailindex/internal/extract"
	"github.com/wesm/mailindex/internal/mime"
	"github.com/wesm/mailindex/internal/textutil"
)

// ErrNoMessageID is returned by ParseMessage when the message has no usable
// Message-ID and SkipMissingID is set.
var ErrNoMessageID = errors.New("no usable message id")

// DefaultFallbackDomain is the domain of synthesized identifiers.
const DefaultFallbackDomain = "mailindex.invalid"

// ParseOptions configures ParseMessage.
type ParseOptions struct {
	FallbackDomain string            // Defaults to DefaultFallbackDomain
	SkipMissingID  bool              // Drop messages without a Message-ID instead of synthesizing one
	Extractor      extract.Extractor // Defaults to extract.HTML
	ExtractTimeout time.Duration     // Per-part bound on extraction; 0 means none
}

func (o ParseOptions) extractor() extract.Extractor {
	if o.Extractor == nil {
		return extract.HTML{}
	}
	return o.Extractor
}

// ParseMessage decodes one message file into a Record.
func ParseMessage(ctx context.Context, raw []byte, item corpus.WorkItem, opts ParseOptions) (*Record, error) {
	msg, err := mime.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse mime: %w", err)
	}

	rec := &Record{
		Subject:       msg.Header("Subject"),
		SenderDisplay: msg.Header("From"),
		Folder:        item.Folder,
		Seq:           item.Seq,
		ParentID:      bracketToken(msg.Header("In-Reply-To")),
	}

	rec.ID = bracketToken(msg.Header("Message-ID"))
	if rec.ID == "" {
		if opts.SkipMissingID {
			return nil, ErrNoMessageID
		}
		rec.ID = FallbackID(item.Key(), opts.FallbackDomain)
		rec.SyntheticID = true
	}
	rec.DeclaredID = rec.ID

	if from := msg.AddressList("From"); len(from) > 0 {
		rec.SenderEmail = from[0].Email
	}
	rec.Recipients = recipients(msg)

	if t, ok := msg.Date(); ok {
		rec.Timestamp = &t
	}

	body, err := selectBody(ctx, msg, opts)
	if err != nil {
		return nil, err
	}
	rec.Body = textutil.EnsureUTF8(body)
	rec.NormalizedBody = textutil.Normalize(rec.Body)

	return rec, nil
}

// FallbackID derives the identifier used for messages without a Message-ID.
func FallbackID(key corpus.Key, domain string) string {
	if domain == "" {
		domain = DefaultFallbackDomain
	}
	return fmt.Sprintf("%s-%d@%s", key.Folder, key.Seq, domain)
}

// bracketToken returns the trimmed text between the first '<' and the
// following '>', or "" when there is none.
func bracketToken(value string) string {
	start := strings.IndexByte(value, '<')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(value[start+1:], '>')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(value[start+1 : start+1+end])
}

// recipients collects the To, Cc and Bcc addresses.
func recipients(msg *mime.Message) []string {
	set := make(map[string]bool)
	for _, header := range []string{"To", "Cc", "Bcc"} {
		for _, addr := range msg.AddressList(header) {
			if addr.Email != "" {
				set[addr.Email] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// selectBody picks exactly one body for the message. A single-part message
// contributes its content as is.
func selectBody(ctx context.Context, msg *mime.Message, opts ParseOptions) (string, error) {
	if !msg.IsMultipart() {
		return string(msg.Root.Content), nil
	}
	body, _, err := selectFromContainer(ctx, msg.Root, opts)
	return body, err
}

// selectFromContainer scans children in order. The first nested container
// that yields a body, or the first HTML part, wins; otherwise the first
// plain-text part is used.
func selectFromContainer(ctx context.Context, container *mime.Part, opts ParseOptions) (string, bool, error) {
	var plain *mime.Part
	for _, child := range container.Children {
		if child.Disposition == "attachment" {
			continue
		}
		switch {
		case child.IsMultipart():
			body, ok, err := selectFromContainer(ctx, child, opts)
			if err != nil || ok {
				return body, ok, err
			}
		case child.ContentType == "text/html":
			text, err := extractPart(ctx, child, opts)
			if err != nil {
				return "", false, err
			}
			return text, true, nil
		case child.ContentType == "text/plain" && plain == nil:
			plain = child
		}
	}
	if plain != nil {
		return string(plain.Content), true, nil
	}
	return "", false, nil
}

func extractPart(ctx context.Context, part *mime.Part, opts ParseOptions) (string, error) {
	if opts.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ExtractTimeout)
		defer cancel()
	}
	text, err := opts.extractor().Extract(ctx, part.ContentType, part.Charset, part.Content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", part.ContentType, err)
	}
	return text, nil
}
