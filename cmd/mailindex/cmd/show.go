package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wesm/mailindex/internal/store"
)

// maxParentDepth bounds the ancestor walk. Stored chains are acyclic, the
// bound only guards against hand-edited databases.
const maxParentDepth = 100

var showBodyOnly bool

var showCmd = &cobra.Command{
	Use:   "show <message-id>",
	Short: "Show one indexed message",
	Long: `Show a stored message by its identifier, together with the chain of
messages it replies to and the messages that reply to it.

Angle brackets around the identifier are optional.

Examples:
  mailindex show abc123@example.com
  mailindex show '<abc123@example.com>' --body`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(args[0]), "<"), ">")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		m, err := s.GetMail(id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("message not found: %s", id)
		}
		if err != nil {
			return fmt.Errorf("get message: %w", err)
		}

		out := cmd.OutOrStdout()
		if showBodyOnly {
			fmt.Fprintln(out, m.Body)
			return nil
		}

		ancestors, err := parentChain(s, m)
		if err != nil {
			return err
		}
		replies, err := s.Replies(m.MessageID)
		if err != nil {
			return fmt.Errorf("list replies: %w", err)
		}
		writeMail(out, m, ancestors, replies)
		return nil
	},
}

// parentChain returns m's ancestors, nearest first.
func parentChain(s *store.Store, m *store.Mail) ([]*store.Mail, error) {
	var chain []*store.Mail
	cur := m
	for len(chain) < maxParentDepth && cur.Parent.Valid {
		p, err := s.GetMail(cur.Parent.String)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("get parent %s: %w", cur.Parent.String, err)
		}
		chain = append(chain, p)
		cur = p
	}
	return chain, nil
}

const rule = "───────────────────────────────────────────────────────────────────────────────"

func writeMail(w io.Writer, m *store.Mail, ancestors []*store.Mail, replies []store.Mail) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Message-ID: %s", m.MessageID)
	if m.SyntheticID {
		fmt.Fprint(w, " (synthesized)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Location:   %s/%d\n", m.Folder, m.FileIndex)
	from := m.SenderEmail
	if m.Sender != "" && m.Sender != m.SenderEmail {
		from = fmt.Sprintf("%s <%s>", m.Sender, m.SenderEmail)
	}
	fmt.Fprintf(w, "From:       %s\n", from)
	if m.Recipients != "" {
		fmt.Fprintf(w, "To:         %s\n", m.Recipients)
	}
	fmt.Fprintf(w, "Subject:    %s\n", m.Subject)
	if m.Timestamp.Valid {
		fmt.Fprintf(w, "Date:       %s\n", m.Timestamp.Time.Format("2006-01-02 15:04:05 MST"))
	}

	if len(ancestors) > 0 {
		fmt.Fprintln(w, "\nIn reply to:")
		for i, a := range ancestors {
			fmt.Fprintf(w, "  %s%s  %s/%d  %s\n", strings.Repeat("  ", i), a.MessageID, a.Folder, a.FileIndex, truncateWidth(a.Subject, 50))
		}
	}
	if len(replies) > 0 {
		fmt.Fprintln(w, "\nReplies:")
		for _, r := range replies {
			fmt.Fprintf(w, "  %s  %s/%d  %s\n", r.MessageID, r.Folder, r.FileIndex, truncateWidth(r.Subject, 50))
		}
	}

	fmt.Fprintln(w, rule)
	if m.Body != "" {
		fmt.Fprintln(w, m.Body)
	} else {
		fmt.Fprintln(w, "[No body content available]")
	}
	fmt.Fprintln(w, rule)
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showBodyOnly, "body", false, "Print only the stored body")
}
