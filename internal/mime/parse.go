// Package mime parses raw RFC 5322 messages using enmime and exposes header
// lookup and the multipart part tree.
package mime

import (
	"bytes"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
)

// Message is a parsed mail message.
type Message struct {
	env *enmime.Envelope

	// Root is the top-level MIME part. For single-part messages it carries
	// the body directly; for multipart messages its Children are the
	// sub-parts in wire order.
	Root *Part

	Errors []string // Non-fatal parsing errors
}

// Part is one node of the MIME tree.
type Part struct {
	ContentType string // Lowercased media type without parameters
	Charset     string // Declared charset, as written in the header
	Disposition string
	FileName    string
	Content     []byte // Decoded content; text parts are already UTF-8 where enmime could convert
	Children    []*Part

	header map[string][]string
}

// Address is one parsed mailbox.
type Address struct {
	Name  string
	Email string // Lowercased
}

// Parse parses raw MIME data into a Message.
func Parse(raw []byte) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	msg := &Message{
		env:  env,
		Root: convertPart(env.Root),
	}
	for _, e := range env.Errors {
		msg.Errors = append(msg.Errors, e.Error())
	}
	return msg, nil
}

func convertPart(p *enmime.Part) *Part {
	if p == nil {
		return &Part{ContentType: "text/plain"}
	}
	part := &Part{
		ContentType: strings.ToLower(p.ContentType),
		Charset:     p.Charset,
		Disposition: p.Disposition,
		FileName:    p.FileName,
		Content:     p.Content,
		header:      p.Header,
	}
	if part.ContentType == "" {
		part.ContentType = "text/plain"
	}
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		part.Children = append(part.Children, convertPart(c))
	}
	return part
}

// Header returns the decoded value of the named top-level header, or "" if
// absent. Lookup is case-insensitive.
func (m *Message) Header(name string) string {
	return m.env.GetHeader(name)
}

// IsMultipart reports whether the message body is a multipart container.
func (m *Message) IsMultipart() bool {
	return m.Root.IsMultipart()
}

// AddressList parses the named address header. Headers that enmime rejects
// are split on commas and each item is parsed on its own, so one malformed
// mailbox does not hide the rest.
func (m *Message) AddressList(header string) []Address {
	list, err := m.env.AddressList(header)
	if err == nil {
		addresses := make([]Address, 0, len(list))
		for _, addr := range list {
			if addr.Address == "" {
				continue
			}
			addresses = append(addresses, Address{
				Name:  addr.Name,
				Email: strings.ToLower(addr.Address),
			})
		}
		return addresses
	}
	return parseLooseAddressList(m.env.GetHeader(header))
}

func parseLooseAddressList(value string) []Address {
	var addresses []Address
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if addr, err := mail.ParseAddress(item); err == nil {
			addresses = append(addresses, Address{Name: addr.Name, Email: strings.ToLower(addr.Address)})
			continue
		}
		// Last resort: a bare or bracketed addr-spec.
		if start := strings.LastIndex(item, "<"); start >= 0 {
			if end := strings.Index(item[start:], ">"); end > 0 {
				item = item[start+1 : start+end]
			}
		}
		if strings.Contains(item, "@") && !strings.ContainsAny(item, " \t") {
			addresses = append(addresses, Address{Email: strings.ToLower(item)})
		}
	}
	return addresses
}

// Date parses the Date header. The boolean is false when the header is
// missing or in no recognised format.
func (m *Message) Date() (time.Time, bool) {
	value := m.env.GetHeader("Date")
	if value == "" {
		return time.Time{}, false
	}
	return parseDate(value)
}

// IsMultipart reports whether the part is a multipart container.
func (p *Part) IsMultipart() bool {
	return strings.HasPrefix(p.ContentType, "multipart/")
}

// Header returns the raw value of the named part header.
func (p *Part) Header(name string) string {
	if p.header == nil {
		return ""
	}
	return mail.Header(p.header).Get(name)
}

// dateFormats lists the layouts seen in real-world Date headers that
// net/mail.ParseDate rejects.
var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 06 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// parseDate returns the time in UTC.
func parseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")

	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC(), true
	}

	// Strip a trailing "(PST)"-style comment but keep the numeric offset.
	base := s
	if idx := strings.LastIndex(s, "("); idx > 0 {
		base = strings.TrimSpace(s[:idx])
	}
	for _, candidate := range []string{base, s} {
		for _, format := range dateFormats {
			if t, err := time.Parse(format, candidate); err == nil {
				return t.UTC(), true
			}
		}
		if base == s {
			break
		}
	}
	return time.Time{}, false
}
