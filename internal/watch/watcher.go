// Package watch follows the resource directory and reports explanations
// that were written, rewritten or deleted behind the server's back.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/argflow-go/internal/logging"
	"github.com/Benny93/argflow-go/internal/storage"
)

// DefaultDebounce is the quiet period after the last event before a batch
// of changes is reported.
const DefaultDebounce = 2 * time.Second

// IgnoreFilename holds gitignore-style patterns, relative to the resource
// root, of paths the watcher skips.
const IgnoreFilename = ".argflowignore"

// defaultIgnores are always skipped. Payload files never change the graph.
var defaultIgnores = []string{
	".git/",
	".argflow/",
	storage.PayloadsDirname + "/",
	"*.tmp",
	"*~",
}

// Change is one explanation whose graph file changed.
type Change struct {
	Ref     storage.Ref
	Removed bool
}

// Locator maps a path below the resource root to its explanation.
type Locator interface {
	Locate(path string) (storage.Ref, bool)
}

// Handler receives each debounced batch of changes, ordered by ref.
type Handler func(ctx context.Context, changes []Change)

// Watcher reports changed explanations below a resource root.
type Watcher struct {
	root     string
	locator  Locator
	handler  Handler
	debounce time.Duration
	matcher  gitignore.Matcher
	logger   *slog.Logger
}

// New creates a watcher of root. A non-positive debounce selects
// DefaultDebounce.
func New(root string, locator Locator, debounce time.Duration, handler Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	matcher, err := loadIgnoreMatcher(root)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		locator:  locator,
		handler:  handler,
		debounce: debounce,
		matcher:  matcher,
		logger:   logging.New("watch"),
	}, nil
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root, nil); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changed := make(map[storage.Ref]bool)
	batch := time.NewTimer(w.debounce)
	batch.Stop()

	w.logger.Info("watching resources", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) && !w.ignored(event.Name, true) {
				// files written before the directory was watched are found by the walk
				var found []string
				if err := w.addTree(fw, event.Name, &found); err != nil {
					w.logger.Warn("watching new directory", slog.String("path", event.Name), logging.Err(err))
				}
				for _, path := range found {
					w.mark(changed, path)
				}
			}
			if w.mark(changed, event.Name) {
				batch.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Err(err))

		case <-batch.C:
			if len(changed) == 0 {
				continue
			}
			changes := w.resolve(changed)
			changed = make(map[storage.Ref]bool)
			w.logger.Debug("explanations changed", slog.Int("count", len(changes)))
			w.handler(ctx, changes)
		}
	}
}

// Relevant reports whether an event on path can change an explanation:
// its graph file, or the explanation directory itself.
func (w *Watcher) Relevant(path string) bool {
	ref, ok := w.locator.Locate(path)
	if !ok {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch {
	case len(parts) == 2:
	case len(parts) == 3 && parts[2] == storage.GraphFilename:
	default:
		return false
	}
	return !w.ignored(filepath.Join(w.root, ref.Model, ref.Name), true)
}

func (w *Watcher) mark(changed map[storage.Ref]bool, path string) bool {
	if !w.Relevant(path) {
		return false
	}
	ref, _ := w.locator.Locate(path)
	changed[ref] = true
	return true
}

// resolve turns marked refs into changes by checking what is on disk now.
func (w *Watcher) resolve(changed map[storage.Ref]bool) []Change {
	changes := make([]Change, 0, len(changed))
	for ref := range changed {
		_, err := os.Stat(filepath.Join(w.root, ref.Model, ref.Name, storage.GraphFilename))
		changes = append(changes, Change{Ref: ref, Removed: errors.Is(err, fs.ErrNotExist)})
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Ref.Model != changes[j].Ref.Model {
			return changes[i].Ref.Model < changes[j].Ref.Model
		}
		return changes[i].Ref.Name < changes[j].Ref.Name
	})
	return changes
}

// addTree watches dir and every directory below it that is not ignored.
// Graph files met on the way are appended to found when it is non-nil.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string, found *[]string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if found != nil && d.Name() == storage.GraphFilename {
				*found = append(*found, path)
			}
			return nil
		}
		if path != w.root && w.ignored(path, true) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// ignored checks path against the default and user patterns. Model
// directories are always ignored.
func (w *Watcher) ignored(path string, dir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if dir && len(parts) == 2 && parts[1] == storage.ModelDirname {
		return true
	}
	return w.matcher.Match(parts, dir)
}

// loadIgnoreMatcher builds a matcher from the default patterns and the
// ignore file of root, if any.
func loadIgnoreMatcher(root string) (gitignore.Matcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range defaultIgnores {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	content, err := os.ReadFile(filepath.Join(root, IgnoreFilename))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", IgnoreFilename, err)
	default:
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, gitignore.ParsePattern(line, nil))
		}
	}
	return gitignore.NewMatcher(patterns), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
