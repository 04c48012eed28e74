// Package cache keeps parsed explanations in memory.
//
// Explanations is an LRU of read models keyed by explanation ref. Loads of
// the same ref that overlap share one read of the underlying store.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Benny93/argflow-go/internal/logging"
	"github.com/Benny93/argflow-go/internal/storage"
	"github.com/Benny93/argflow-go/internal/view"
)

// DefaultSize is the number of explanations kept when no size is given.
const DefaultSize = 64

// Explanations caches argumentation graphs read from a store.
type Explanations struct {
	store  storage.ExplanationStore
	graphs *lru.Cache[storage.Ref, *view.ArgumentationGraph]
	group  singleflight.Group
	logger *slog.Logger
}

// New creates a cache of at most size explanations over store.
func New(store storage.ExplanationStore, size int) (*Explanations, error) {
	if size <= 0 {
		size = DefaultSize
	}
	graphs, err := lru.New[storage.Ref, *view.ArgumentationGraph](size)
	if err != nil {
		return nil, fmt.Errorf("creating explanation cache: %w", err)
	}
	return &Explanations{
		store:  store,
		graphs: graphs,
		logger: logging.New("cache"),
	}, nil
}

// Store returns the underlying store.
func (c *Explanations) Store() storage.ExplanationStore { return c.store }

// Load returns the read model of ref, reading and parsing it on a miss.
// The returned graph is shared and must not be updated by callers.
func (c *Explanations) Load(ctx context.Context, ref storage.Ref) (*view.ArgumentationGraph, error) {
	if g, ok := c.graphs.Get(ref); ok {
		return g, nil
	}

	v, err, _ := c.group.Do(ref.String(), func() (any, error) {
		doc, err := c.store.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		g, err := view.NewArgumentationGraph(doc)
		if err != nil {
			return nil, fmt.Errorf("explanation %s: %w", ref, err)
		}
		c.graphs.Add(ref, g)
		c.logger.Debug("cached explanation", slog.String("ref", ref.String()), slog.Int("nodes", g.NodeCount()))
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*view.ArgumentationGraph), nil
}

// Contains reports whether ref is cached.
func (c *Explanations) Contains(ref storage.Ref) bool {
	return c.graphs.Contains(ref)
}

// Invalidate drops ref from the cache.
func (c *Explanations) Invalidate(ref storage.Ref) {
	if c.graphs.Remove(ref) {
		c.logger.Debug("invalidated explanation", slog.String("ref", ref.String()))
	}
}

// InvalidateModel drops every cached explanation of model.
func (c *Explanations) InvalidateModel(model string) {
	for _, ref := range c.graphs.Keys() {
		if ref.Model == model {
			c.graphs.Remove(ref)
		}
	}
}

// Delete removes ref from the store and the cache.
func (c *Explanations) Delete(ctx context.Context, ref storage.Ref) error {
	if err := c.store.Delete(ctx, ref); err != nil {
		return err
	}
	c.Invalidate(ref)
	return nil
}

// Purge empties the cache.
func (c *Explanations) Purge() { c.graphs.Purge() }

// Len returns the number of cached explanations.
func (c *Explanations) Len() int { return c.graphs.Len() }
