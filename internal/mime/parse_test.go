package mime

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	testemail "github.com/wesm/mailindex/internal/testutil/email"
)

// mustParse calls Parse and fails the test on error.
func mustParse(t *testing.T, raw []byte) *Message {
	t.Helper()
	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	return msg
}

func emails(addrs []Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Email
	}
	return out
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time // Zero value means we expect parse failure
	}{
		{"RFC1123Z", "Mon, 02 Jan 2006 15:04:05 -0700",
			time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)},
		{"single digit day", "Mon, 2 Jan 2006 15:04:05 +0100",
			time.Date(2006, 1, 2, 14, 4, 5, 0, time.UTC)},
		{"no weekday", "02 Jan 2006 15:04:05 -0700",
			time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)},
		{"parenthesized zone", "Mon, 02 Jan 2006 15:04:05 -0700 (PST)",
			time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)},
		{"double space after comma", "Mon,  2 Dec 2024 11:42:03 +0000 (UTC)",
			time.Date(2024, 12, 2, 11, 42, 3, 0, time.UTC)},
		{"ISO 8601 offset", "2006-01-02T15:04:05-07:00",
			time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)},
		{"SQL-like with tz", "2006-01-02 15:04:05 -0700",
			time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)},

		{"garbage", "not a date", time.Time{}},
		{"date only", "2006-01-02", time.Time{}},
		{"spelled month", "January 2, 2006", time.Time{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseDate(tc.input)
			if tc.want.IsZero() {
				if ok {
					t.Errorf("parseDate(%q) = %v, want failure", tc.input, got)
				}
				return
			}
			if !ok {
				t.Fatalf("parseDate(%q) failed, want %v", tc.input, tc.want)
			}
			if !got.Equal(tc.want) {
				t.Errorf("parseDate(%q) = %v, want %v", tc.input, got, tc.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("parseDate(%q) location = %v, want UTC", tc.input, got.Location())
			}
		})
	}
}

func TestParse_SinglePart(t *testing.T) {
	raw := testemail.NewMessage().
		Subject("Hello").
		MessageID("abc@example.com").
		Body("Body text").
		Bytes()

	msg := mustParse(t, raw)

	if got := msg.Header("subject"); got != "Hello" {
		t.Errorf("Header(subject) = %q, want %q", got, "Hello")
	}
	if got := msg.Header("Message-Id"); got != "<abc@example.com>" {
		t.Errorf("Header(Message-Id) = %q, want %q", got, "<abc@example.com>")
	}
	if got := msg.Header("In-Reply-To"); got != "" {
		t.Errorf("Header(In-Reply-To) = %q, want empty", got)
	}
	if msg.IsMultipart() {
		t.Error("IsMultipart() = true, want false")
	}
	if msg.Root.ContentType != "text/plain" {
		t.Errorf("Root.ContentType = %q, want text/plain", msg.Root.ContentType)
	}
	if string(msg.Root.Content) != "Body text" {
		t.Errorf("Root.Content = %q, want %q", msg.Root.Content, "Body text")
	}
}

func TestParse_PartTree(t *testing.T) {
	raw := testemail.NewMessage().Multipart(testemail.Part{
		ContentType: "multipart/mixed",
		Children: []testemail.Part{
			{ContentType: "multipart/alternative", Children: []testemail.Part{
				{ContentType: "text/plain", Body: "plain"},
				{ContentType: "text/html", Body: "<p>html</p>"},
			}},
			{ContentType: "application/octet-stream", Body: "bin"},
		},
	}).Bytes()

	msg := mustParse(t, raw)

	if !msg.IsMultipart() {
		t.Fatal("IsMultipart() = false, want true")
	}
	var got []string
	var walk func(p *Part, depth int)
	walk = func(p *Part, depth int) {
		got = append(got, p.ContentType)
		for _, c := range p.Children {
			walk(c, depth+1)
		}
	}
	walk(msg.Root, 0)

	want := []string{
		"multipart/mixed",
		"multipart/alternative",
		"text/plain",
		"text/html",
		"application/octet-stream",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("part tree mismatch (-want +got):\n%s", diff)
	}

	html := msg.Root.Children[0].Children[1]
	if string(html.Content) != "<p>html</p>" {
		t.Errorf("html content = %q", html.Content)
	}
	if html.Charset == "" {
		t.Error("html Charset is empty, want utf-8")
	}
}

func TestAddressList(t *testing.T) {
	raw := testemail.NewMessage().
		From(`"Alice Example" <Alice@Example.COM>`).
		To("bob@example.com, Carol <carol@example.org>").
		Bytes()
	msg := mustParse(t, raw)

	from := msg.AddressList("From")
	if len(from) != 1 || from[0].Email != "alice@example.com" || from[0].Name != "Alice Example" {
		t.Errorf("From = %+v", from)
	}
	if diff := cmp.Diff([]string{"bob@example.com", "carol@example.org"}, emails(msg.AddressList("To"))); diff != "" {
		t.Errorf("To mismatch (-want +got):\n%s", diff)
	}
	if got := msg.AddressList("Cc"); len(got) != 0 {
		t.Errorf("Cc = %v, want empty", got)
	}
}

func TestParseLooseAddressList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a@x.com, b@y.com", []string{"a@x.com", "b@y.com"}},
		{"Broken <<weird@x.com>>, ok@y.com", []string{"weird@x.com", "ok@y.com"}},
		{"not an address, C@Z.ORG", []string{"c@z.org"}},
		{"", nil},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := emails(parseLooseAddressList(tc.input))
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMessage_Date(t *testing.T) {
	msg := mustParse(t, testemail.NewMessage().Date("Tue, 05 Mar 2013 08:00:00 +0100").Bytes())
	got, ok := msg.Date()
	if !ok {
		t.Fatal("Date() not ok")
	}
	if want := time.Date(2013, 3, 5, 7, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Date() = %v, want %v", got, want)
	}

	msg = mustParse(t, testemail.NewMessage().Date("").Bytes())
	if _, ok := msg.Date(); ok {
		t.Error("Date() ok for missing header")
	}
}

func TestParse_Latin1Charset(t *testing.T) {
	raw := []byte("From: sender@example.com\r\nTo: recipient@example.com\r\nSubject: Caf\xe9\r\nContent-Type: text/plain; charset=iso-8859-1\r\n\r\nCaf\xe9 au lait")

	msg := mustParse(t, raw)

	if string(msg.Root.Content) != "Café au lait" {
		t.Errorf("Root.Content = %q, want %q", msg.Root.Content, "Café au lait")
	}
	if msg.Root.Header("Content-Type") == "" {
		t.Error("Root.Header(Content-Type) is empty")
	}
}
