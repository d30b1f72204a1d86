// ABOUTME: Document lifecycle operations for one knowledge base screen
// ABOUTME: Upload, process, stop, retry, delete, and download, keeping the Board in step

package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/2389/kbchat/internal/auth"
	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/config"
)

// ErrSessionExpired is returned when an operation needs a token and none is
// stored. The user has already been sent to the login page.
var ErrSessionExpired = errors.New("session expired")

// SessionExpiredMessage is the notice shown alongside the login redirect.
const SessionExpiredMessage = "Session expired. Please login again."

// API is the subset of the backend client the document screen uses.
type API interface {
	GetKnowledgeBase(ctx context.Context, id string) (*client.KnowledgeBase, error)
	UploadDocument(ctx context.Context, kbID, fileName string, content io.Reader) (*client.UploadResult, error)
	ProcessDocument(ctx context.Context, docID string) error
	StopProcessingDocument(ctx context.Context, docID string) error
	DocumentStatus(ctx context.Context, docID string) (*client.DocumentStatus, error)
	DownloadDocument(ctx context.Context, docID string, w io.Writer) (int64, error)
	DeleteDocument(ctx context.Context, docID string, deleteToRetry bool) error
}

// File is a local file queued for upload. Open is only called once the name
// has passed the extension check.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FromPath returns a File backed by the file at path.
func FromPath(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// UploadOutcome is the result for one file of an Upload call.
type UploadOutcome struct {
	Name     string
	Document *client.Document
	Err      error
}

// Manager runs document operations for one knowledge base.
type Manager struct {
	api    API
	tokens client.TokenSource
	nav    auth.Navigator
	board  *Board
	kbID   string
	exts   Extensions
	poll   config.DocumentsConfig
	base   *slog.Logger
	logger *slog.Logger
}

// NewManager creates a manager for knowledge base kbID.
func NewManager(api API, tokens client.TokenSource, nav auth.Navigator, kbID string, cfg config.DocumentsConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultPollInterval
	}
	return &Manager{
		api:    api,
		tokens: tokens,
		nav:    nav,
		board:  NewBoard(logger),
		kbID:   kbID,
		exts:   extensionsFrom(cfg.AllowedExtensions),
		poll:   cfg,
		base:   logger,
		logger: logger.With("component", "documents", "knowledge_base_id", kbID),
	}
}

// Board returns the manager's document records.
func (m *Manager) Board() *Board { return m.board }

// Extensions returns the allowed upload extensions.
func (m *Manager) Extensions() Extensions { return m.exts }

// Path is the screen route for this knowledge base.
func (m *Manager) Path() string { return "/knowledge/" + m.kbID }

// requireToken redirects to login when no token is stored.
func (m *Manager) requireToken(ctx context.Context) error {
	tok, err := m.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if tok == "" {
		m.logger.Info("no session token, redirecting to login")
		if m.nav != nil {
			m.nav.Navigate(auth.LoginRedirect(m.Path()))
		}
		return ErrSessionExpired
	}
	return nil
}

// Load fetches the knowledge base and replaces the board's records.
func (m *Manager) Load(ctx context.Context) (*client.KnowledgeBase, error) {
	if err := m.requireToken(ctx); err != nil {
		return nil, err
	}
	kb, err := m.api.GetKnowledgeBase(ctx, m.kbID)
	if err != nil {
		return nil, err
	}
	m.board.Set(kb.Documents)
	return kb, nil
}

// Upload uploads each file in turn. A rejected or failed file does not stop
// the others.
func (m *Manager) Upload(ctx context.Context, files ...File) ([]UploadOutcome, error) {
	if err := m.requireToken(ctx); err != nil {
		return nil, err
	}

	outcomes := make([]UploadOutcome, 0, len(files))
	for _, f := range files {
		doc, err := m.uploadOne(ctx, f)
		if err != nil {
			m.logger.Warn("upload failed", "file", f.Name, "error", err)
		}
		outcomes = append(outcomes, UploadOutcome{Name: f.Name, Document: doc, Err: err})
	}
	return outcomes, nil
}

func (m *Manager) uploadOne(ctx context.Context, f File) (*client.Document, error) {
	if err := m.exts.Validate(f.Name); err != nil {
		return nil, err
	}

	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer r.Close()

	res, err := m.api.UploadDocument(ctx, m.kbID, f.Name, r)
	if err != nil {
		return nil, err
	}

	doc := res.Document()
	doc.FileName = f.Name
	doc.Status = client.StatusUploaded
	doc.KnowledgeBase = m.kbID
	m.board.Add(doc)
	m.logger.Info("document uploaded", "doc_id", doc.ID, "file", f.Name)
	return &doc, nil
}

// Process starts ingestion and marks the record processing.
func (m *Manager) Process(ctx context.Context, docID string) error {
	if err := m.requireToken(ctx); err != nil {
		return err
	}
	if err := m.api.ProcessDocument(ctx, docID); err != nil {
		return err
	}
	m.board.SetStatus(docID, client.StatusProcessing)
	return nil
}

// Stop cancels ingestion and marks the record failed.
func (m *Manager) Stop(ctx context.Context, docID string) error {
	if err := m.requireToken(ctx); err != nil {
		return err
	}
	if err := m.api.StopProcessingDocument(ctx, docID); err != nil {
		return err
	}
	m.board.SetStatus(docID, client.StatusFailed)
	return nil
}

// Retry discards the previous ingestion output and processes the document
// again. Processing is not attempted if the cleanup fails.
func (m *Manager) Retry(ctx context.Context, docID string) error {
	if err := m.requireToken(ctx); err != nil {
		return err
	}
	if err := m.api.DeleteDocument(ctx, docID, true); err != nil {
		return err
	}
	if err := m.api.ProcessDocument(ctx, docID); err != nil {
		return fmt.Errorf("retry processing: %w", err)
	}
	m.board.SetStatus(docID, client.StatusProcessing)
	return nil
}

// Delete removes the document and its record.
func (m *Manager) Delete(ctx context.Context, docID string) error {
	if err := m.requireToken(ctx); err != nil {
		return err
	}
	if err := m.api.DeleteDocument(ctx, docID, false); err != nil {
		return err
	}
	m.board.Remove(docID)
	return nil
}

// Download writes the original file to w.
func (m *Manager) Download(ctx context.Context, docID string, w io.Writer) (int64, error) {
	if err := m.requireToken(ctx); err != nil {
		return 0, err
	}
	return m.api.DownloadDocument(ctx, docID, w)
}

// Poller returns a status poller over this manager's board.
func (m *Manager) Poller() *Poller {
	return NewPoller(m.api, m.board, m.poll.PollInterval, m.requireToken, m.base.With("knowledge_base_id", m.kbID))
}
