// ABOUTME: Shared terminal formatting: headings, tables, timestamps, and prompts
// ABOUTME: Password prompts use golang.org/x/term when stdin is a terminal

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Heading prints a cyan section title with an underline.
func Heading(w io.Writer, title string) {
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(w)
	cyan.Fprintf(w, "  %s\n", title)
	cyan.Fprintf(w, "  %s\n", strings.Repeat("-", len(title)))
}

// Table returns a tabwriter with the header row written. Call Flush when done.
func Table(w io.Writer, columns ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	dashes := make([]string, len(columns))
	for i, c := range columns {
		dashes[i] = strings.Repeat("-", len(c))
	}
	fmt.Fprintln(tw, "  "+strings.Join(columns, "\t"))
	fmt.Fprintln(tw, "  "+strings.Join(dashes, "\t"))
	return tw
}

// Row writes one table row.
func Row(tw *tabwriter.Writer, cells ...any) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, "  "+strings.Join(parts, "\t"))
}

// Empty prints the placeholder for an empty list.
func Empty(w io.Writer, what string) {
	fmt.Fprintf(w, "  (no %s)\n\n", what)
}

// Truncate shortens s to max runes with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// When formats an API timestamp for display. Unparseable input is returned
// unchanged.
func When(s string) string {
	if s == "" {
		return "-"
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Local().Format("Jan 02 15:04")
		}
	}
	return s
}

// Prompter reads answers from the user.
type Prompter struct {
	in  *bufio.Reader
	fd  int
	tty bool
	out io.Writer
}

// NewPrompter reads from stdin and writes prompts to out.
func NewPrompter(out io.Writer) *Prompter {
	fd := int(os.Stdin.Fd())
	return &Prompter{
		in:  bufio.NewReader(os.Stdin),
		fd:  fd,
		tty: term.IsTerminal(fd),
		out: out,
	}
}

// Line prompts for a line of input. def is returned for an empty answer.
func (p *Prompter) Line(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// Secret prompts for a value without echoing it on a terminal.
func (p *Prompter) Secret(label string) (string, error) {
	if !p.tty {
		return p.Line(label, "")
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Confirm asks a yes/no question, defaulting to no.
func (p *Prompter) Confirm(question string) bool {
	answer, err := p.Line(question+" (y/N)", "")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
