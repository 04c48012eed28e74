// Package storage persists explanations and indexes them for search.
//
// Explanations live in a resource directory laid out as
// root/<model>/<explanation>/graph.json, with image payloads under
// root/<model>/<explanation>/payloads. An ExplanationStore reads and writes
// that layout; a SearchIndex keeps a full-text index of node ids and text
// payloads across explanations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/gaf"
)

const (
	// GraphFilename is the document file of an explanation.
	GraphFilename = "graph.json"
	// ModelDirname marks a directory of the resource root as a model.
	ModelDirname = "model"
	// PayloadsDirname holds the image payloads of an explanation.
	PayloadsDirname = "payloads"
)

var (
	// ErrNotFound is returned for models or explanations that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrExplanationExists is returned when writing under a taken name.
	ErrExplanationExists = errors.New("explanation already exists")

	// ErrInvalidName is returned for model or explanation names that are
	// empty or would leave their parent directory.
	ErrInvalidName = errors.New("invalid name")
)

// Ref identifies an explanation.
type Ref struct {
	Model string `json:"model"`
	Name  string `json:"name"`
}

// String renders the ref as model/name.
func (r Ref) String() string { return r.Model + "/" + r.Name }

// ParseRef parses a model/name string.
func ParseRef(s string) (Ref, error) {
	model, name, ok := strings.Cut(s, "/")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q is not model/name", ErrInvalidName, s)
	}
	ref := Ref{Model: model, Name: name}
	if err := ref.Validate(); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// Validate checks both parts of the ref. The explanation name may not be
// ModelDirname, which holds the model's own files.
func (r Ref) Validate() error {
	if err := ValidateName(r.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := ValidateName(r.Name); err != nil {
		return fmt.Errorf("explanation: %w", err)
	}
	if r.Name == ModelDirname {
		return fmt.Errorf("explanation: %w: %q is reserved", ErrInvalidName, r.Name)
	}
	return nil
}

// ValidateName rejects names that cannot be used as a single directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// ModelInfo describes a model directory.
type ModelInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ExplanationInfo describes a stored explanation.
type ExplanationInfo struct {
	Model string `json:"model"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
}

// Ref returns the ref of the explanation.
func (e ExplanationInfo) Ref() Ref { return Ref{Model: e.Model, Name: e.Name} }

// SearchResult is a node matching a search query.
type SearchResult struct {
	Ref      Ref     `json:"ref"`
	NodeID   string  `json:"node_id"`
	NodeType string  `json:"node_type"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"score"`
}

// ExplanationStore reads and writes explanations.
//
// Implementations must be safe for concurrent use.
type ExplanationStore interface {
	// Models lists the models, sorted by name.
	Models(ctx context.Context) ([]ModelInfo, error)

	// Explanations lists the explanations of a model, sorted by name.
	Explanations(ctx context.Context, model string) ([]ExplanationInfo, error)

	// Get reads the document of an explanation.
	Get(ctx context.Context, ref Ref) (*document.Document, error)

	// Write serializes g as a new explanation of model. An empty name
	// selects a timestamped default.
	Write(ctx context.Context, model, name string, g *gaf.GAF) (Ref, *document.Document, error)

	// Delete removes an explanation and its payloads.
	Delete(ctx context.Context, ref Ref) error
}

// SearchIndex is a full-text index over explanation nodes.
//
// Implementations must be safe for concurrent use.
type SearchIndex interface {
	// Initialize opens or creates the index at the given path.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the index.
	Close() error

	// BulkLoad replaces the entire index with the given explanations.
	BulkLoad(ctx context.Context, docs map[Ref]*document.Document) error

	// IndexExplanation adds or replaces one explanation.
	IndexExplanation(ctx context.Context, ref Ref, doc *document.Document) error

	// RemoveExplanation drops one explanation from the index.
	RemoveExplanation(ctx context.Context, ref Ref) error

	// Refs lists the indexed explanations.
	Refs(ctx context.Context) ([]Ref, error)

	// Search returns the best matching nodes, at most limit when limit > 0.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// LoadAll reads every explanation of the store, for bulk indexing.
// Explanations that fail to parse are skipped and reported in skipped.
func LoadAll(ctx context.Context, store ExplanationStore) (docs map[Ref]*document.Document, skipped []Ref, err error) {
	models, err := store.Models(ctx)
	if err != nil {
		return nil, nil, err
	}
	docs = make(map[Ref]*document.Document)
	for _, m := range models {
		infos, err := store.Explanations(ctx, m.Name)
		if err != nil {
			return nil, nil, err
		}
		for _, info := range infos {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			doc, err := store.Get(ctx, info.Ref())
			if err != nil {
				skipped = append(skipped, info.Ref())
				continue
			}
			docs[info.Ref()] = doc
		}
	}
	return docs, skipped, nil
}
