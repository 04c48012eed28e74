package watch

import (
	"context"
	"log/slog"

	"github.com/Benny93/argflow-go/internal/cache"
	"github.com/Benny93/argflow-go/internal/logging"
	"github.com/Benny93/argflow-go/internal/session"
	"github.com/Benny93/argflow-go/internal/storage"
)

// Refresher brings the explanation cache, the search index and open
// sessions in line with changed explanations. Index and Sessions may be nil.
type Refresher struct {
	Explanations *cache.Explanations
	Index        storage.SearchIndex
	Sessions     *session.Manager

	logger *slog.Logger
}

// NewRefresher creates a refresher.
func NewRefresher(c *cache.Explanations, index storage.SearchIndex, sessions *session.Manager) *Refresher {
	return &Refresher{
		Explanations: c,
		Index:        index,
		Sessions:     sessions,
		logger:       logging.New("refresh"),
	}
}

// Apply handles a batch of changes. It has the Handler signature.
func (r *Refresher) Apply(ctx context.Context, changes []Change) {
	for _, c := range changes {
		r.Explanations.Invalidate(c.Ref)

		if c.Removed {
			if r.Sessions != nil {
				if n := r.Sessions.CloseExplanation(c.Ref); n > 0 {
					r.logger.Info("closed sessions of removed explanation",
						slog.String("ref", c.Ref.String()), slog.Int("sessions", n))
				}
			}
			if r.Index != nil {
				if err := r.Index.RemoveExplanation(ctx, c.Ref); err != nil {
					r.logger.Warn("unindexing explanation", slog.String("ref", c.Ref.String()), logging.Err(err))
				}
			}
			continue
		}

		if r.Index == nil {
			continue
		}
		doc, err := r.Explanations.Store().Get(ctx, c.Ref)
		if err != nil {
			r.logger.Warn("reading changed explanation", slog.String("ref", c.Ref.String()), logging.Err(err))
			continue
		}
		if err := r.Index.IndexExplanation(ctx, c.Ref, doc); err != nil {
			r.logger.Warn("indexing explanation", slog.String("ref", c.Ref.String()), logging.Err(err))
		}
	}
}
