package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/argflow-go/internal/cache"
	"github.com/Benny93/argflow-go/internal/logging"
	"github.com/Benny93/argflow-go/internal/session"
	"github.com/Benny93/argflow-go/internal/storage"
	"github.com/Benny93/argflow-go/internal/watch"
	"github.com/Benny93/argflow-go/mcp"
)

// MCPCmd starts the MCP server without an index or watcher.
type MCPCmd struct {
	SDK bool `help:"Serve through the MCP SDK stdio transport"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(env *Env) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	explanations, err := env.explanations()
	if err != nil {
		return err
	}
	server := mcp.NewServer(explanations, env.sessions(explanations), nil)

	// No output to stdout: it carries JSON-RPC only
	if c.SDK {
		return server.RunSDK(ctx)
	}
	return ignoreCanceled(server.Run(ctx, env.In, env.Out))
}

// ServeCmd starts the MCP server with the search index and optional watch mode.
type ServeCmd struct {
	Watch   bool `short:"w" help:"Follow changes to the resource directory (default from config)"`
	NoIndex bool `help:"Serve without the search index"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(env *Env) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.serve(ctx, env)
}

func (c *ServeCmd) serve(ctx context.Context, env *Env) error {
	logger := logging.New("serve")
	root := absResourceDir(env)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating resource directory: %w", err)
	}

	store := storage.NewFileBackend(root)
	explanations, err := cache.New(store, env.Config.CacheSize)
	if err != nil {
		return err
	}
	sessions := env.sessions(explanations)

	var (
		index    storage.SearchIndex
		searcher mcp.Searcher
	)
	if !c.NoIndex {
		badger, err := env.openIndex(false)
		if err != nil {
			return err
		}
		defer func() { _ = badger.Close() }()

		docs, skipped, err := storage.LoadAll(ctx, store)
		if err != nil {
			return err
		}
		for _, ref := range skipped {
			logger.Warn("skipping unreadable explanation", slog.String("ref", ref.String()))
		}
		if err := badger.BulkLoad(ctx, docs); err != nil {
			return fmt.Errorf("indexing: %w", err)
		}
		logger.Info("index ready", slog.Int("explanations", badger.ExplanationCount()))
		index, searcher = badger, badger
	}

	server := mcp.NewServer(explanations, sessions, searcher)

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.Watch || env.Config.Watch.Enabled {
		refresher := watch.NewRefresher(explanations, index, sessions)
		w, err := watch.New(root, store, env.Config.Watch.Debounce, refresher.Apply)
		if err != nil {
			return err
		}
		logger.Info("watching resources", slog.String("root", root))
		g.Go(func() error { return ignoreCanceled(w.Run(ctx)) })
	}

	logger.Info("starting MCP server", slog.String("resources", root))
	g.Go(func() error {
		// the server stops on EOF; take the watcher down with it
		defer cancel()
		return ignoreCanceled(server.Run(ctx, env.In, env.Out))
	})
	return g.Wait()
}

func (e *Env) sessions(c *cache.Explanations) *session.Manager {
	return session.NewManager(c, session.Defaults{
		Limit:      e.Config.Prune.Limit,
		LayerLimit: e.Config.Prune.LayerLimit,
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
