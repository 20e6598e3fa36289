package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/mailindex/internal/corpus"
	testemail "github.com/wesm/mailindex/internal/testutil/email"
)

var inbox7 = corpus.WorkItem{Folder: "Inbox", Seq: 7, Path: "/mail/Inbox/7"}

func mustParse(t *testing.T, raw []byte, opts ParseOptions) *Record {
	t.Helper()
	rec, err := ParseMessage(context.Background(), raw, inbox7, opts)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	return rec
}

func TestParseMessage_Headers(t *testing.T) {
	raw := testemail.NewMessage().
		From("Alice Example <Alice@Example.com>").
		To("bob@example.com, Carol <CAROL@example.com>").
		Cc("bob@example.com").
		Bcc("dave@example.com").
		Subject("Quarterly numbers").
		Date("Tue, 05 Mar 2019 09:30:00 -0500").
		MessageID("abc123@example.com").
		InReplyTo("parent@example.com").
		Body("See attached.").
		Bytes()

	rec := mustParse(t, raw, ParseOptions{})
	rec.Body = strings.TrimSpace(rec.Body)

	ts := time.Date(2019, 3, 5, 14, 30, 0, 0, time.UTC)
	want := &Record{
		ID:             "abc123@example.com",
		DeclaredID:     "abc123@example.com",
		Subject:        "Quarterly numbers",
		SenderDisplay:  "Alice Example <Alice@Example.com>",
		SenderEmail:    "alice@example.com",
		Recipients:     []string{"bob@example.com", "carol@example.com", "dave@example.com"},
		Timestamp:      &ts,
		Body:           "See attached.",
		NormalizedBody: "see attached",
		Folder:         "Inbox",
		Seq:            7,
		ParentID:       "parent@example.com",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("ParseMessage mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMessage_Identifier(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		opts      ParseOptions
		wantID    string
		synthetic bool
	}{
		{"bracketed", "<id@example.com>", ParseOptions{}, "id@example.com", false},
		{"surrounding text", "junk <id@example.com> trailer", ParseOptions{}, "id@example.com", false},
		{"absent", "", ParseOptions{}, "Inbox-7@mailindex.invalid", true},
		{"unbracketed", "id@example.com", ParseOptions{}, "Inbox-7@mailindex.invalid", true},
		{"empty brackets", "<>", ParseOptions{}, "Inbox-7@mailindex.invalid", true},
		{"custom domain", "", ParseOptions{FallbackDomain: "local"}, "Inbox-7@local", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := testemail.NewMessage()
			if tc.header != "" {
				b.Header("Message-ID", tc.header)
			}
			rec := mustParse(t, b.Bytes(), tc.opts)
			if rec.ID != tc.wantID || rec.SyntheticID != tc.synthetic {
				t.Errorf("ID = %q (synthetic %v), want %q (synthetic %v)", rec.ID, rec.SyntheticID, tc.wantID, tc.synthetic)
			}
		})
	}
}

func TestParseMessage_SkipMissingID(t *testing.T) {
	raw := testemail.NewMessage().Bytes()
	_, err := ParseMessage(context.Background(), raw, inbox7, ParseOptions{SkipMissingID: true})
	if !errors.Is(err, ErrNoMessageID) {
		t.Fatalf("err = %v, want ErrNoMessageID", err)
	}
}

func TestParseMessage_BadDate(t *testing.T) {
	for _, date := range []string{"", "not a date"} {
		raw := testemail.NewMessage().Date(date).MessageID("x@y").Bytes()
		if rec := mustParse(t, raw, ParseOptions{}); rec.Timestamp != nil {
			t.Errorf("Date %q: Timestamp = %v, want nil", date, rec.Timestamp)
		}
	}
}

func TestParseMessage_NoInReplyTo(t *testing.T) {
	raw := testemail.NewMessage().MessageID("x@y").Header("In-Reply-To", "no brackets here").Bytes()
	if rec := mustParse(t, raw, ParseOptions{}); rec.ParentID != "" {
		t.Errorf("ParentID = %q, want empty", rec.ParentID)
	}
}

func TestParseMessage_BodySelection(t *testing.T) {
	plain := func(body string) testemail.Part { return testemail.Part{ContentType: "text/plain", Body: body} }
	html := func(body string) testemail.Part { return testemail.Part{ContentType: "text/html", Body: body} }

	tests := []struct {
		name string
		root testemail.Part
		want string
	}{
		{
			name: "html preferred over earlier plain",
			root: testemail.Part{ContentType: "multipart/mixed", Children: []testemail.Part{
				plain("plain first"), html("<b>html second</b>"),
			}},
			want: "html second",
		},
		{
			name: "alternative resolved recursively",
			root: testemail.Part{ContentType: "multipart/mixed", Children: []testemail.Part{
				{ContentType: "multipart/alternative", Children: []testemail.Part{
					plain("alt plain"), html("<p>alt html</p>"),
				}},
				plain("outer plain"),
			}},
			want: "alt html",
		},
		{
			name: "first plain wins without html",
			root: testemail.Part{ContentType: "multipart/mixed", Children: []testemail.Part{
				plain("first"), plain("second"),
			}},
			want: "first",
		},
		{
			name: "related nested one level deeper",
			root: testemail.Part{ContentType: "multipart/mixed", Children: []testemail.Part{
				{ContentType: "multipart/related", Children: []testemail.Part{
					html("<div>deep body</div>"),
					{ContentType: "image/png", Body: "iVBORw0KGgo="},
				}},
			}},
			want: "deep body",
		},
		{
			name: "nested container without text falls through",
			root: testemail.Part{ContentType: "multipart/mixed", Children: []testemail.Part{
				{ContentType: "multipart/related", Children: []testemail.Part{
					{ContentType: "image/png", Body: "iVBORw0KGgo="},
				}},
				plain("after the images"),
			}},
			want: "after the images",
		},
		{
			name: "no text parts",
			root: testemail.Part{ContentType: "multipart/mixed", Children: []testemail.Part{
				{ContentType: "application/octet-stream", Body: "AAAA"},
			}},
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := testemail.NewMessage().MessageID("x@y").Multipart(tc.root).Bytes()
			rec := mustParse(t, raw, ParseOptions{})
			if got := strings.TrimSpace(rec.Body); got != tc.want {
				t.Errorf("Body = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseMessage_SinglePartUsedDirectly(t *testing.T) {
	raw := testemail.NewMessage().
		MessageID("x@y").
		ContentType("text/html; charset=utf-8").
		Body("<p>Hello, World</p>").
		Bytes()
	rec := mustParse(t, raw, ParseOptions{})
	if got := strings.TrimSpace(rec.Body); got != "<p>Hello, World</p>" {
		t.Errorf("Body = %q", got)
	}
	if rec.NormalizedBody != "p hello world p" {
		t.Errorf("NormalizedBody = %q", rec.NormalizedBody)
	}
}

type extractorFunc func(ctx context.Context, contentType, charset string, raw []byte) (string, error)

func (f extractorFunc) Extract(ctx context.Context, contentType, charset string, raw []byte) (string, error) {
	return f(ctx, contentType, charset, raw)
}

func htmlMessage() []byte {
	return testemail.NewMessage().MessageID("x@y").Multipart(testemail.Part{
		ContentType: "multipart/alternative",
		Children: []testemail.Part{
			{ContentType: "text/plain", Body: "plain"},
			{ContentType: "text/html", Body: "<p>html</p>"},
		},
	}).Bytes()
}

func TestParseMessage_CustomExtractor(t *testing.T) {
	var gotType string
	ex := extractorFunc(func(_ context.Context, contentType, _ string, _ []byte) (string, error) {
		gotType = contentType
		return "Rendered Text", nil
	})
	rec := mustParse(t, htmlMessage(), ParseOptions{Extractor: ex})
	if gotType != "text/html" {
		t.Errorf("extractor content type = %q", gotType)
	}
	if rec.Body != "Rendered Text" || rec.NormalizedBody != "rendered text" {
		t.Errorf("Body = %q, NormalizedBody = %q", rec.Body, rec.NormalizedBody)
	}
}

func TestParseMessage_ExtractorFailure(t *testing.T) {
	boom := errors.New("renderer crashed")
	ex := extractorFunc(func(context.Context, string, string, []byte) (string, error) {
		return "", boom
	})
	_, err := ParseMessage(context.Background(), htmlMessage(), inbox7, ParseOptions{Extractor: ex})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestParseMessage_ExtractTimeout(t *testing.T) {
	ex := extractorFunc(func(ctx context.Context, _, _ string, _ []byte) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := ParseMessage(context.Background(), htmlMessage(), inbox7,
		ParseOptions{Extractor: ex, ExtractTimeout: 20 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestBracketToken(t *testing.T) {
	tests := map[string]string{
		"<a@b>":           "a@b",
		"  < a@b >  ":     "a@b",
		"<a@b> <c@d>":     "a@b",
		"x <a@b":          "",
		"a@b":             "",
		"":                "",
		"<>":              "",
		"prefix<a@b>tail": "a@b",
	}
	for in, want := range tests {
		if got := bracketToken(in); got != want {
			t.Errorf("bracketToken(%q) = %q, want %q", in, got, want)
		}
	}
}
