// Package email provides builders for raw RFC 5322 test messages.
package email

import (
	"fmt"
	"strings"
)

// Part describes one MIME part for MessageBuilder.Multipart. A part with
// Children is rendered as a multipart container of ContentType.
type Part struct {
	ContentType string
	Body        string
	Children    []Part
}

// MessageBuilder constructs MIME messages with a fluent API.
type MessageBuilder struct {
	from        string
	to          string
	cc          string
	bcc         string
	subject     string
	date        string
	contentType string
	body        string
	headerKeys  []string
	headerVals  []string
	root        *Part
}

// NewMessage creates a MessageBuilder with sensible defaults.
func NewMessage() *MessageBuilder {
	return &MessageBuilder{
		from:    "sender@example.com",
		to:      "recipient@example.com",
		date:    "Mon, 01 Jan 2024 12:00:00 +0000",
		subject: "Test Message",
		body:    "This is a test message body.",
	}
}

// From sets the From header.
func (b *MessageBuilder) From(v string) *MessageBuilder { b.from = v; return b }

// To sets the To header.
func (b *MessageBuilder) To(v string) *MessageBuilder { b.to = v; return b }

// Cc sets the Cc header.
func (b *MessageBuilder) Cc(v string) *MessageBuilder { b.cc = v; return b }

// Bcc sets the Bcc header.
func (b *MessageBuilder) Bcc(v string) *MessageBuilder { b.bcc = v; return b }

// Subject sets the Subject header.
func (b *MessageBuilder) Subject(v string) *MessageBuilder { b.subject = v; return b }

// Date sets the Date header. An empty value omits it.
func (b *MessageBuilder) Date(v string) *MessageBuilder { b.date = v; return b }

// MessageID sets Message-ID to <id>.
func (b *MessageBuilder) MessageID(id string) *MessageBuilder {
	return b.Header("Message-ID", "<"+id+">")
}

// InReplyTo sets In-Reply-To to <id>.
func (b *MessageBuilder) InReplyTo(id string) *MessageBuilder {
	return b.Header("In-Reply-To", "<"+id+">")
}

// ContentType overrides the Content-Type header of a single-part message.
func (b *MessageBuilder) ContentType(v string) *MessageBuilder { b.contentType = v; return b }

// Body sets the body of a single-part message.
func (b *MessageBuilder) Body(v string) *MessageBuilder { b.body = v; return b }

// Header adds an arbitrary header.
func (b *MessageBuilder) Header(key, value string) *MessageBuilder {
	b.headerKeys = append(b.headerKeys, key)
	b.headerVals = append(b.headerVals, value)
	return b
}

// Multipart replaces the body with the given part tree.
func (b *MessageBuilder) Multipart(root Part) *MessageBuilder {
	b.root = &root
	return b
}

// Bytes renders the message with CRLF line endings.
func (b *MessageBuilder) Bytes() []byte {
	var sb strings.Builder
	writeHeader := func(k, v string) {
		if v != "" {
			sb.WriteString(k + ": " + v + "\r\n")
		}
	}
	writeHeader("From", b.from)
	writeHeader("To", b.to)
	writeHeader("Cc", b.cc)
	writeHeader("Bcc", b.bcc)
	writeHeader("Subject", b.subject)
	writeHeader("Date", b.date)
	for i, k := range b.headerKeys {
		writeHeader(k, b.headerVals[i])
	}
	sb.WriteString("MIME-Version: 1.0\r\n")

	if b.root != nil {
		counter := 0
		writePart(&sb, *b.root, &counter)
		return []byte(sb.String())
	}

	ct := b.contentType
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	writeHeader("Content-Type", ct)
	sb.WriteString("\r\n")
	sb.WriteString(b.body)
	return []byte(sb.String())
}

// writePart writes the part's Content-Type header, blank line and body.
func writePart(sb *strings.Builder, p Part, counter *int) {
	if len(p.Children) == 0 {
		ct := p.ContentType
		if ct == "" {
			ct = "text/plain"
		}
		if !strings.Contains(ct, "charset") {
			ct += "; charset=utf-8"
		}
		sb.WriteString("Content-Type: " + ct + "\r\n\r\n")
		sb.WriteString(p.Body)
		sb.WriteString("\r\n")
		return
	}

	*counter++
	boundary := fmt.Sprintf("b%d-boundary", *counter)
	ct := p.ContentType
	if ct == "" {
		ct = "multipart/mixed"
	}
	sb.WriteString(fmt.Sprintf("Content-Type: %s; boundary=%q\r\n\r\n", ct, boundary))
	for _, child := range p.Children {
		sb.WriteString("--" + boundary + "\r\n")
		writePart(sb, child, counter)
	}
	sb.WriteString("--" + boundary + "--\r\n")
}
