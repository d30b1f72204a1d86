// ABOUTME: Board holds the document records shown for one knowledge base
// ABOUTME: Ordered, mutex guarded, and publishes every change to subscribers

package documents

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/2389/kbchat/internal/broadcast"
	"github.com/2389/kbchat/internal/client"
)

// Change describes one board update.
type Change struct {
	Document client.Document
	Removed  bool
}

// Board is the local list of documents. Updates from the manager and the
// poller are serialized by its mutex.
type Board struct {
	mu   sync.RWMutex
	docs []client.Document

	changes *broadcast.Broadcaster[Change]
}

// NewBoard creates an empty board.
func NewBoard(logger *slog.Logger) *Board {
	return &Board{changes: broadcast.New[Change](logger)}
}

// Set replaces every record.
func (b *Board) Set(docs []client.Document) {
	b.mu.Lock()
	b.docs = slices.Clone(docs)
	b.mu.Unlock()

	for _, d := range docs {
		b.changes.Publish(Change{Document: d})
	}
}

// Add appends a record.
func (b *Board) Add(doc client.Document) {
	b.mu.Lock()
	b.docs = append(b.docs, doc)
	b.mu.Unlock()

	b.changes.Publish(Change{Document: doc})
}

// Update applies fn to the record with id. It reports whether the record exists.
func (b *Board) Update(id string, fn func(*client.Document)) bool {
	b.mu.Lock()
	i := b.index(id)
	if i < 0 {
		b.mu.Unlock()
		return false
	}
	fn(&b.docs[i])
	doc := b.docs[i]
	b.mu.Unlock()

	b.changes.Publish(Change{Document: doc})
	return true
}

// SetStatus sets a record's status. Progress is cleared.
func (b *Board) SetStatus(id, status string) bool {
	return b.Update(id, func(d *client.Document) {
		d.Status = status
		d.Progress = nil
	})
}

// Merge folds a polled status into the record. A nil progress keeps the
// previous value.
func (b *Board) Merge(id string, st client.DocumentStatus) bool {
	return b.Update(id, func(d *client.Document) {
		if st.Status != "" {
			d.Status = st.Status
		}
		if st.Progress != nil {
			p := *st.Progress
			d.Progress = &p
		}
	})
}

// Remove deletes the record with id.
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	i := b.index(id)
	if i < 0 {
		b.mu.Unlock()
		return false
	}
	doc := b.docs[i]
	b.docs = slices.Delete(b.docs, i, i+1)
	b.mu.Unlock()

	b.changes.Publish(Change{Document: doc, Removed: true})
	return true
}

// Get returns a copy of the record with id.
func (b *Board) Get(id string) (client.Document, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if i := b.index(id); i >= 0 {
		return b.docs[i], true
	}
	return client.Document{}, false
}

// List returns a copy of every record in display order.
func (b *Board) List() []client.Document {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.docs)
}

// Processing returns the IDs of records whose status is processing.
func (b *Board) Processing() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ids []string
	for _, d := range b.docs {
		if d.Status == client.StatusProcessing {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Subscribe returns a channel of changes that closes when ctx is cancelled.
func (b *Board) Subscribe(ctx context.Context) <-chan Change {
	ch, _ := b.changes.Subscribe(ctx)
	return ch
}

// Close closes every subscriber channel.
func (b *Board) Close() {
	b.changes.Close()
}

// index must be called with b.mu held.
func (b *Board) index(id string) int {
	return slices.IndexFunc(b.docs, func(d client.Document) bool { return d.ID == id })
}
