// ABOUTME: Tests for subcommand splitting and flag parsing helpers

package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	sub, rest := Split(nil)
	assert.Empty(t, sub)
	assert.Empty(t, rest)

	sub, rest = Split([]string{"show", "kb1"})
	assert.Equal(t, "show", sub)
	assert.Equal(t, []string{"kb1"}, rest)
}

func TestCommand_Parse(t *testing.T) {
	var out bytes.Buffer
	fs := NewCommand("kbchat", "kb delete [-y] <kb>", &out)
	yes := fs.Bool("y", false, "skip confirmation")

	require.NoError(t, fs.Parse([]string{"-y", "kb1"}, 1))
	assert.True(t, *yes)
	assert.Equal(t, "kb1", fs.Arg(0))
	assert.True(t, fs.Set("y"))
	assert.False(t, fs.Set("missing"))
	assert.Empty(t, out.String())
}

func TestCommand_ParseTooFewArgs(t *testing.T) {
	var out bytes.Buffer
	fs := NewCommand("kbchat", "kb inherit <source> <target>", &out)

	err := fs.Parse([]string{"only-one"}, 2)
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out.String(), "Usage: kbchat kb inherit <source> <target>")
}

func TestCommand_ParseBadFlag(t *testing.T) {
	var out bytes.Buffer
	fs := NewCommand("kbchat", "docs list <kb>", &out)

	err := fs.Parse([]string{"-nope"}, 0)
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out.String(), "-nope")
}

func TestCommand_SetDistinguishesDefault(t *testing.T) {
	fs := NewCommand("kbchat", "assistants update", &bytes.Buffer{})
	name := fs.String("name", "current", "name")

	require.NoError(t, fs.Parse([]string{"-name", "current"}, 0))
	assert.Equal(t, "current", *name)
	assert.True(t, fs.Set("name"), "an explicit value equal to the default still counts")
}

func TestCommand_Usagef(t *testing.T) {
	var out bytes.Buffer
	fs := NewCommand("kbchat-admin", "users edit -org ORG <user-id>", &out)

	err := fs.Usagef("-org is required")
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out.String(), "-org is required\nUsage: kbchat-admin users edit")
}

func TestUnknown(t *testing.T) {
	var out bytes.Buffer
	require.ErrorIs(t, Unknown(&out, "kbchat", "kb", ""), ErrUsage)
	assert.Contains(t, out.String(), "Usage: kbchat kb <command>")

	out.Reset()
	require.ErrorIs(t, Unknown(&out, "kbchat", "kb", "frob"), ErrUsage)
	assert.Equal(t, "Unknown kb command: frob\n", out.String())
}
