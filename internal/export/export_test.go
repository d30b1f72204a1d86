// ABOUTME: Tests for HTML conversation export and blob saving
// ABOUTME: Checks markdown rendering, escaping of user input, and safe file naming

package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kbchat/internal/chat"
	"github.com/2389/kbchat/internal/client"
)

func TestRender(t *testing.T) {
	conv := Conversation{
		Title:         "Quarterly report",
		AssistantName: "Analyst",
		ExportedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "<script>alert(1)</script> **not bold**", MediaType: chat.MediaText},
			{Role: chat.RoleAssistant, Content: "Revenue is **up**.\n\n| q | n |\n|---|---|\n| 1 | 2 |", MediaType: chat.MediaText},
			{Role: chat.RoleAssistant, Content: "https://cdn/chart.png", MediaType: chat.MediaImage},
			{Role: chat.RoleAssistant, Content: "https://cdn/clip.mp4", MediaType: chat.MediaVideo},
			{Role: chat.RoleAssistant, Content: "<b>raw</b>", MediaType: chat.MediaText},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer().Render(&buf, conv))
	out := buf.String()

	assert.Contains(t, out, "<title>Quarterly report</title>")
	assert.Contains(t, out, "Analyst")
	assert.Contains(t, out, "5 messages")
	assert.Contains(t, out, "&lt;script&gt;alert(1)&lt;/script&gt; **not bold**")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<strong>up</strong>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, `<img src="https://cdn/chart.png"`)
	assert.Contains(t, out, `<video src="https://cdn/clip.mp4" controls>`)
	assert.NotContains(t, out, "<b>raw</b>")
}

func TestRender_Defaults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer().Render(&buf, Conversation{}))
	assert.Contains(t, buf.String(), "<title>Conversation</title>")
	assert.Contains(t, buf.String(), "0 messages")
}

func TestWriteHTMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.html")
	conv := Conversation{Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi", MediaType: chat.MediaText}}}

	require.NoError(t, NewRenderer().WriteHTMLFile(path, conv))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<p>hi</p>")
}

func TestSaveBlob(t *testing.T) {
	dir := t.TempDir()
	blob := &client.Blob{Filename: "conversations.xlsx", Data: []byte("PK")}

	first, err := SaveBlob(dir, blob, "fallback.xlsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversations.xlsx"), first)

	second, err := SaveBlob(dir, blob, "fallback.xlsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversations-1.xlsx"), second)

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), data)
}

func TestSaveBlob_FallbackAndTraversal(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveBlob(dir, &client.Blob{Data: []byte("png")}, "wordcloud.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "wordcloud.png"), path)

	path, err = SaveBlob(dir, &client.Blob{Filename: "../../etc/passwd", Data: []byte("x")}, "f")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "passwd"), path)

	_, err = SaveBlob(dir, &client.Blob{Filename: ".."}, "")
	assert.Error(t, err)
}
