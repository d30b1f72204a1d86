// ABOUTME: Conversation export to standalone HTML and saving of binary export blobs
// ABOUTME: Assistant replies are rendered as markdown with goldmark; user text is escaped

package export

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/kbchat/internal/chat"
	"github.com/2389/kbchat/internal/client"
)

//go:embed templates/*.html
var templateFS embed.FS

// Conversation is the input to Render.
type Conversation struct {
	Title         string
	AssistantName string
	ExportedAt    time.Time
	Messages      []chat.Message
}

type renderedMessage struct {
	Role      chat.Role
	Kind      string
	Content   string
	HTML      template.HTML
	CreatedAt time.Time
}

// Renderer turns conversations into HTML documents.
type Renderer struct {
	md   goldmark.Markdown
	tmpl *template.Template
}

// NewRenderer parses the embedded template. Raw HTML inside assistant
// markdown is not passed through.
func NewRenderer() *Renderer {
	return &Renderer{
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		tmpl: template.Must(template.ParseFS(templateFS, "templates/conversation.html")),
	}
}

// Render writes conv as a standalone HTML page.
func (r *Renderer) Render(w io.Writer, conv Conversation) error {
	if conv.ExportedAt.IsZero() {
		conv.ExportedAt = time.Now()
	}
	if conv.Title == "" {
		conv.Title = "Conversation"
	}

	msgs := make([]renderedMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		rm := renderedMessage{
			Role:      m.Role,
			Kind:      string(m.MediaType),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
		if m.Role == chat.RoleAssistant && m.MediaType.IsText() {
			var buf bytes.Buffer
			if err := r.md.Convert([]byte(m.Content), &buf); err != nil {
				return fmt.Errorf("rendering markdown: %w", err)
			}
			rm.HTML = template.HTML(buf.String())
		}
		msgs = append(msgs, rm)
	}

	data := struct {
		Title         string
		AssistantName string
		ExportedAt    time.Time
		Messages      []renderedMessage
	}{conv.Title, conv.AssistantName, conv.ExportedAt, msgs}

	if err := r.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering conversation: %w", err)
	}
	return nil
}

// WriteHTMLFile renders conv into a new file at path.
func (r *Renderer) WriteHTMLFile(path string, conv Conversation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Render(f, conv); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveBlob writes blob into dir and returns the path written. The server's
// file name is used when present, else fallback. An existing file is never
// overwritten; a numeric suffix is added instead.
func SaveBlob(dir string, blob *client.Blob, fallback string) (string, error) {
	name := sanitizeName(blob.Filename)
	if name == "" {
		name = sanitizeName(fallback)
	}
	if name == "" {
		return "", errors.New("no file name for export")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(blob.Data); err != nil {
			f.Close()
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("too many existing files named %s in %s", name, dir)
}

// sanitizeName strips directories so a server-supplied name cannot escape dir.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case ".", "..", "/", "":
		return ""
	}
	return name
}
