// Package extract turns message parts into plain text for indexing.
//
// An Extractor receives the part's media type, its declared charset and the
// part bytes. The built-in HTML extractor strips markup in-process; Command
// pipes the part through an external renderer such as w3m or lynx.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/wesm/mailindex/internal/textutil"
)

// ErrUnsupported is returned for media types an extractor does not handle.
var ErrUnsupported = errors.New("unsupported content type")

// Extractor converts one part to plain text.
type Extractor interface {
	Extract(ctx context.Context, contentType, charset string, raw []byte) (string, error)
}

// DefaultTimeout bounds a single Command invocation when none is configured.
const DefaultTimeout = 30 * time.Second

// HTML is the built-in extractor. It needs no external programs.
type HTML struct{}

// Extract implements Extractor.
func (HTML) Extract(ctx context.Context, contentType, charset string, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := textutil.Decode(raw, charset)
	switch contentType {
	case "text/html", "application/xhtml+xml":
		return StripHTML(text), nil
	case "text/plain":
		return text, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}
}

// Command runs an external renderer with the part on stdin and reads plain
// text from stdout.
type Command struct {
	Args    []string // Program and arguments, e.g. {"w3m", "-dump", "-T", "text/html"}
	Timeout time.Duration
}

// Extract implements Extractor. A renderer that outlives Timeout is killed
// and the call fails.
func (c Command) Extract(ctx context.Context, contentType, charset string, raw []byte) (string, error) {
	if len(c.Args) == 0 {
		return "", errors.New("extract command not configured")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Renderers generally assume UTF-8 input.
	input := textutil.Decode(raw, charset)

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Stdin = strings.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", c.Args[0], ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", c.Args[0], err, msg)
		}
		return "", fmt.Errorf("%s: %w", c.Args[0], err)
	}
	return textutil.EnsureUTF8(stdout.String()), nil
}

// New returns Command when args are given and HTML otherwise.
func New(args []string, timeout time.Duration) Extractor {
	if len(args) == 0 {
		return HTML{}
	}
	return Command{Args: args, Timeout: timeout}
}

var (
	scriptTagRe   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTagRe    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headTagRe     = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	noscriptTagRe = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTagRe    = regexp.MustCompile(`(?i)<(/?)(p|div|br|hr|h[1-6]|li|tr|td|th|blockquote|pre|table|ul|ol|dl|dt|dd)[^>]*>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
)

// StripHTML removes tags, decodes entities and normalizes whitespace. Block
// elements become line breaks; at most one blank line separates blocks.
func StripHTML(rawHTML string) string {
	text := scriptTagRe.ReplaceAllString(rawHTML, "")
	text = styleTagRe.ReplaceAllString(text, "")
	text = headTagRe.ReplaceAllString(text, "")
	text = noscriptTagRe.ReplaceAllString(text, "")
	text = commentRe.ReplaceAllString(text, "")

	text = blockTagRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}
