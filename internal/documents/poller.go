// ABOUTME: Fixed-interval status poller for documents that are processing
// ABOUTME: One concurrent status request per processing document on each tick

package documents

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/kbchat/internal/client"
)

// StatusAPI fetches a document's processing status.
type StatusAPI interface {
	DocumentStatus(ctx context.Context, docID string) (*client.DocumentStatus, error)
}

// Poller refreshes processing documents on a Board until they reach
// processed or failed.
type Poller struct {
	api      StatusAPI
	board    *Board
	interval time.Duration
	check    func(context.Context) error
	logger   *slog.Logger

	// OnError is called for each failed status request. It may be nil.
	OnError func(docID string, err error)
}

// NewPoller creates a poller. check runs before every tick; a non-nil result
// stops the poller.
func NewPoller(api StatusAPI, board *Board, interval time.Duration, check func(context.Context) error, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		api:      api,
		board:    board,
		interval: interval,
		check:    check,
		logger:   logger.With("component", "documents.poller"),
	}
}

// Run polls until ctx is cancelled or the check fails.
func (p *Poller) Run(ctx context.Context) error {
	return p.run(ctx, false)
}

// RunUntilSettled polls until no document is processing.
func (p *Poller) RunUntilSettled(ctx context.Context) error {
	return p.run(ctx, true)
}

func (p *Poller) run(ctx context.Context, untilSettled bool) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if untilSettled && len(p.board.Processing()) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Tick issues one status request per processing document and merges the
// results into the board.
func (p *Poller) Tick(ctx context.Context) error {
	if p.check != nil {
		if err := p.check(ctx); err != nil {
			return err
		}
	}

	ids := p.board.Processing()
	if len(ids) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			st, err := p.api.DocumentStatus(ctx, id)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("status check failed", "doc_id", id, "error", err)
					if p.OnError != nil {
						p.OnError(id, err)
					}
				}
				return nil
			}
			p.board.Merge(id, *st)
			if st.Status != client.StatusProcessing {
				p.logger.Info("document settled", "doc_id", id, "status", st.Status)
			}
			return nil
		})
	}
	return g.Wait()
}
