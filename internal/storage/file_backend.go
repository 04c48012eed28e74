package storage

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
	"sync"
	"time"

	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/gaf"
	"github.com/Benny93/argflow-go/internal/logging"
)

// defaultNameLayout formats the timestamp of unnamed explanations.
const defaultNameLayout = "2006-01-02_15:04:05"

// FileBackend stores explanations in a resource directory.
type FileBackend struct {
	mu     sync.RWMutex
	root   string
	now    func() time.Time
	namer  gaf.FileNamer
	logger *slog.Logger
}

// NewFileBackend creates a file backend rooted at root. The directory is
// created on first write.
func NewFileBackend(root string) *FileBackend {
	return &FileBackend{
		root:   root,
		now:    time.Now,
		logger: logging.New("store"),
	}
}

// Root returns the resource directory.
func (b *FileBackend) Root() string { return b.root }

// SetClock replaces the clock used for default explanation names.
func (b *FileBackend) SetClock(now func() time.Time) { b.now = now }

// SetFileNamer replaces the payload file namer used by Write.
func (b *FileBackend) SetFileNamer(n gaf.FileNamer) { b.namer = n }

// DefaultName returns the name given to an explanation written at t.
func DefaultName(t time.Time) string {
	return "explanation_" + t.Format(defaultNameLayout)
}

// Models implements ExplanationStore.
func (b *FileBackend) Models(ctx context.Context) ([]ModelInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries, err := os.ReadDir(b.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []ModelInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}

	models := []ModelInfo{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(b.root, e.Name())
		if !isDir(filepath.Join(path, ModelDirname)) {
			continue
		}
		size, err := folderSize(ctx, path)
		if err != nil {
			return nil, err
		}
		models = append(models, ModelInfo{Name: e.Name(), Path: path, Size: size})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// Explanations implements ExplanationStore.
func (b *FileBackend) Explanations(ctx context.Context, model string) ([]ExplanationInfo, error) {
	if err := ValidateName(model); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	modelPath := filepath.Join(b.root, model)
	entries, err := os.ReadDir(modelPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("model %q: %w", model, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("listing explanations of %q: %w", model, err)
	}

	infos := []ExplanationInfo{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(modelPath, e.Name())
		if !isFile(filepath.Join(path, GraphFilename)) {
			continue
		}
		size, err := folderSize(ctx, path)
		if err != nil {
			return nil, err
		}
		infos = append(infos, ExplanationInfo{Model: model, Name: e.Name(), Path: path, Size: size})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Get implements ExplanationStore.
func (b *FileBackend) Get(_ context.Context, ref Ref) (*document.Document, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	doc, err := document.ReadFile(b.graphPath(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("explanation %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("explanation %s: %w", ref, err)
	}
	return doc, nil
}

// Write implements ExplanationStore.
//
// The explanation directory is created exclusively, so concurrent writers
// of the same name cannot both succeed. If serialization fails the
// directory is removed again.
func (b *FileBackend) Write(_ context.Context, model, name string, g *gaf.GAF) (Ref, *document.Document, error) {
	if name == "" {
		name = DefaultName(b.now())
	}
	ref := Ref{Model: model, Name: name}
	if err := ref.Validate(); err != nil {
		return Ref{}, nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(b.root, model, ModelDirname), 0o755); err != nil {
		return Ref{}, nil, fmt.Errorf("creating model %q: %w", model, err)
	}

	dir := b.explanationDir(ref)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Ref{}, nil, fmt.Errorf("explanation %s: %w", ref, ErrExplanationExists)
		}
		return Ref{}, nil, fmt.Errorf("creating explanation %s: %w", ref, err)
	}

	doc, err := b.writeExplanation(dir, ref, g)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			b.logger.Warn("removing failed explanation", slog.String("ref", ref.String()), logging.Err(rmErr))
		}
		return Ref{}, nil, err
	}

	b.logger.Info("wrote explanation", slog.String("ref", ref.String()), slog.Int("nodes", len(doc.Nodes)))
	return ref, doc, nil
}

func (b *FileBackend) writeExplanation(dir string, ref Ref, g *gaf.GAF) (*document.Document, error) {
	if err := os.Mkdir(filepath.Join(dir, PayloadsDirname), 0o755); err != nil {
		return nil, fmt.Errorf("creating payloads of %s: %w", ref, err)
	}

	s := gaf.NewSerializer(b.root, filepath.Join(ref.Model, ref.Name, PayloadsDirname))
	if b.namer != nil {
		s.Namer = b.namer
	}
	doc, err := s.Serialize(ref.Name, g)
	if err != nil {
		return nil, fmt.Errorf("serializing %s: %w", ref, err)
	}
	if err := document.WriteFile(filepath.Join(dir, GraphFilename), doc); err != nil {
		return nil, fmt.Errorf("saving %s: %w", ref, err)
	}
	return doc, nil
}

// Delete implements ExplanationStore.
func (b *FileBackend) Delete(_ context.Context, ref Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := b.explanationDir(ref)
	if !b.within(dir) {
		return fmt.Errorf("%w: %s escapes the resource directory", ErrInvalidName, ref)
	}
	if !isDir(dir) {
		return fmt.Errorf("explanation %s: %w", ref, ErrNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting %s: %w", ref, err)
	}

	b.logger.Info("deleted explanation", slog.String("ref", ref.String()))
	return nil
}

// Locate maps a path below the resource root to the explanation containing
// it. ok is false for paths outside any explanation directory.
func (b *FileBackend) Locate(path string) (ref Ref, ok bool) {
	rel, err := filepath.Rel(b.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return Ref{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[1] == ModelDirname {
		return Ref{}, false
	}
	return Ref{Model: parts[0], Name: parts[1]}, true
}

func (b *FileBackend) explanationDir(ref Ref) string {
	return filepath.Join(b.root, ref.Model, ref.Name)
}

func (b *FileBackend) graphPath(ref Ref) string {
	return filepath.Join(b.explanationDir(ref), GraphFilename)
}

// within reports whether path lies strictly below the resource root.
func (b *FileBackend) within(path string) bool {
	root, err := filepath.Abs(b.root)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

func folderSize(ctx context.Context, path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measuring %s: %w", path, err)
	}
	return size, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
