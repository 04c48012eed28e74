package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/gaf"
)

// MemoryBackend is an in-memory ExplanationStore for testing. It keeps
// documents only, so explanations with image payloads cannot be written.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[Ref]*document.Document
	now  func() time.Time
}

// NewMemoryBackend creates an empty in-memory store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs: make(map[Ref]*document.Document),
		now:  time.Now,
	}
}

// Put stores a document directly, replacing any previous one.
func (m *MemoryBackend) Put(ref Ref, doc *document.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[ref] = doc.Clone()
}

// Models implements ExplanationStore.
func (m *MemoryBackend) Models(_ context.Context) ([]ModelInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	models := []ModelInfo{}
	for ref := range m.docs {
		if !seen[ref.Model] {
			seen[ref.Model] = true
			models = append(models, ModelInfo{Name: ref.Model})
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// Explanations implements ExplanationStore.
func (m *MemoryBackend) Explanations(_ context.Context, model string) ([]ExplanationInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := []ExplanationInfo{}
	for ref := range m.docs {
		if ref.Model == model {
			infos = append(infos, ExplanationInfo{Model: ref.Model, Name: ref.Name})
		}
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("model %q: %w", model, ErrNotFound)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Get implements ExplanationStore.
func (m *MemoryBackend) Get(_ context.Context, ref Ref) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[ref]
	if !ok {
		return nil, fmt.Errorf("explanation %s: %w", ref, ErrNotFound)
	}
	return doc.Clone(), nil
}

// Write implements ExplanationStore.
func (m *MemoryBackend) Write(_ context.Context, model, name string, g *gaf.GAF) (Ref, *document.Document, error) {
	if name == "" {
		name = DefaultName(m.now())
	}
	ref := Ref{Model: model, Name: name}
	if err := ref.Validate(); err != nil {
		return Ref{}, nil, err
	}
	if err := textOnly(g); err != nil {
		return Ref{}, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[ref]; ok {
		return Ref{}, nil, fmt.Errorf("explanation %s: %w", ref, ErrExplanationExists)
	}
	doc, err := gaf.NewSerializer("", "").Serialize(name, g)
	if err != nil {
		return Ref{}, nil, fmt.Errorf("serializing %s: %w", ref, err)
	}
	m.docs[ref] = doc
	return ref, doc.Clone(), nil
}

// Delete implements ExplanationStore.
func (m *MemoryBackend) Delete(_ context.Context, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[ref]; !ok {
		return fmt.Errorf("explanation %s: %w", ref, ErrNotFound)
	}
	delete(m.docs, ref)
	return nil
}

func textOnly(g *gaf.GAF) error {
	for _, group := range [][]*gaf.Node{g.Inputs(), g.Arguments(), g.Conclusions()} {
		for _, n := range group {
			if n.Payload != nil && n.Payload.Kind() != gaf.PayloadText {
				return fmt.Errorf("%w: node %q has an image payload and memory storage keeps no files",
					gaf.ErrPayloadWrite, n.ID)
			}
		}
	}
	return nil
}
