// ABOUTME: Tests for table, truncation, and timestamp formatting helpers

package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exactly10!", Truncate("exactly10!", 10))
	assert.Equal(t, "a long ...", Truncate("a long description", 10))
	assert.Equal(t, "héllo w...", Truncate("héllo wörld again", 10), "counts runes, not bytes")
	assert.Equal(t, "ab", Truncate("abcdef", 2))
}

func TestWhen(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	want := ts.Local().Format("Jan 02 15:04")

	assert.Equal(t, "-", When(""))
	assert.Equal(t, want, When("2024-03-05T14:07:00Z"))
	assert.Equal(t, want, When("2024-03-05T14:07:00.123456"))
	assert.Equal(t, want, When("2024-03-05 14:07:00"))
	assert.Equal(t, "yesterday", When("yesterday"))
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tw := Table(&buf, "ID", "NAME")
	Row(tw, "kb1", "Handbook")
	Row(tw, 42, "Policies")
	require.NoError(t, tw.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "  ID   NAME", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "  --   ----", strings.TrimRight(lines[1], " "))
	assert.Equal(t, "  kb1  Handbook", lines[2])
	assert.Equal(t, "  42   Policies", lines[3])
}

func TestEmpty(t *testing.T) {
	var buf bytes.Buffer
	Empty(&buf, "documents")
	assert.Equal(t, "  (no documents)\n\n", buf.String())
}

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Prompter{in: bufio.NewReader(strings.NewReader(input)), out: out}, out
}

func TestPrompter_Line(t *testing.T) {
	p, out := newTestPrompter("  bob  \n\n")

	got, err := p.Line("Username", "")
	require.NoError(t, err)
	assert.Equal(t, "bob", got)
	assert.Equal(t, "Username: ", out.String())

	got, err = p.Line("Server", "http://localhost")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost", got)

	_, err = p.Line("Again", "")
	assert.Error(t, err, "EOF with nothing read")
}

func TestPrompter_SecretWithoutTerminal(t *testing.T) {
	p, _ := newTestPrompter("hunter2\n")
	got, err := p.Secret("Password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestPrompter_Confirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		p, _ := newTestPrompter(input)
		assert.Equal(t, want, p.Confirm("Delete?"), "input %q", input)
	}
}
