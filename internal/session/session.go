// Package session hosts interactive views of explanations.
//
// Each session owns one view over a cached explanation, so concurrent
// clients never share pruning or conversation state. Two visualisers are
// available: "graph" wraps a PruningView and "conversation" a
// ConversationView.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Benny93/argflow-go/internal/cache"
	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/logging"
	"github.com/Benny93/argflow-go/internal/storage"
	"github.com/Benny93/argflow-go/internal/view"
)

var (
	// ErrBadRequest wraps every request the view rejected.
	ErrBadRequest = errors.New("bad request")

	// ErrUnknownSession is returned for session ids that are not open.
	ErrUnknownSession = errors.New("unknown session")

	// ErrUnknownVisualiser is returned for visualiser kinds other than
	// "graph" and "conversation".
	ErrUnknownVisualiser = errors.New("unknown visualiser")
)

// Kind is a visualiser kind.
type Kind string

const (
	KindGraph        Kind = "graph"
	KindConversation Kind = "conversation"
)

// Kinds lists the available visualisers.
func Kinds() []Kind { return []Kind{KindGraph, KindConversation} }

// ParseKind validates a visualiser name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindGraph, KindConversation:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVisualiser, s)
	}
}

// Request is one client request to a session. Graph sessions read Prune,
// Limit and LayerLimit; conversation sessions read the rest and Limit.
type Request struct {
	Prune      bool `json:"prune,omitempty"`
	Limit      *int `json:"limit,omitempty"`
	LayerLimit *int `json:"layer_limit,omitempty"`

	Reset                bool     `json:"reset,omitempty"`
	Primary              string   `json:"primary,omitempty"`
	Secondary            []string `json:"secondary,omitempty"`
	InteractionTarget    string   `json:"interaction_target,omitempty"`
	InteractionDirection string   `json:"interaction_direction,omitempty"`
	ContributionType     string   `json:"contribution_type,omitempty"`
}

// Defaults are the prune limits used when a request omits them.
type Defaults struct {
	Limit      int
	LayerLimit int
}

// Info describes an open session.
type Info struct {
	ID      string      `json:"id"`
	Kind    Kind        `json:"kind"`
	Ref     storage.Ref `json:"ref"`
	Created time.Time   `json:"created"`
}

type session struct {
	mu           sync.Mutex
	info         Info
	pruning      *view.PruningView
	conversation *view.ConversationView
}

// Manager creates sessions and routes requests to them.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	explanations *cache.Explanations
	defaults     Defaults
	now          func() time.Time
	logger       *slog.Logger
}

// NewManager creates a manager loading explanations through c.
func NewManager(c *cache.Explanations, defaults Defaults) *Manager {
	return &Manager{
		sessions:     make(map[string]*session),
		explanations: c,
		defaults:     defaults,
		now:          time.Now,
		logger:       logging.New("session"),
	}
}

// Open starts a session of kind over the explanation ref.
func (m *Manager) Open(ctx context.Context, kind Kind, ref storage.Ref) (Info, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Info{}, err
	}
	g, err := m.explanations.Load(ctx, ref)
	if err != nil {
		return Info{}, err
	}

	s := &session{info: Info{ID: uuid.NewString(), Kind: kind, Ref: ref, Created: m.now()}}
	switch kind {
	case KindGraph:
		s.pruning = view.NewPruningView(g)
	case KindConversation:
		s.conversation, err = view.NewConversationView(g, "", nil)
		if err != nil {
			return Info{}, fmt.Errorf("opening conversation on %s: %w", ref, err)
		}
	}

	m.mu.Lock()
	m.sessions[s.info.ID] = s
	m.mu.Unlock()

	m.logger.Info("session opened",
		slog.String("id", s.info.ID),
		slog.String("kind", string(kind)),
		slog.String("ref", ref.String()))
	return s.info, nil
}

// Process applies req to the session and returns its serialized view: a
// *document.Document for graph sessions and a *view.ConversationState for
// conversation sessions.
func (m *Manager) Process(_ context.Context, id string, req Request) (any, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.info.Kind {
	case KindGraph:
		return m.processGraph(s.pruning, req), nil
	default:
		return m.processConversation(s.conversation, req)
	}
}

func (m *Manager) processGraph(v *view.PruningView, req Request) *document.Document {
	if req.Prune {
		limit, layerLimit := m.defaults.Limit, m.defaults.LayerLimit
		if req.Limit != nil {
			limit = *req.Limit
		}
		if req.LayerLimit != nil {
			layerLimit = *req.LayerLimit
		}
		v.Prune(limit, layerLimit)
	}
	return v.Serialize()
}

func (m *Manager) processConversation(v *view.ConversationView, req Request) (*view.ConversationState, error) {
	if req.Reset {
		if err := v.SetState(req.Primary, req.Secondary); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}

	if req.InteractionTarget != "" && req.InteractionDirection != "" {
		dir, err := view.ParseDirection(req.InteractionDirection)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		limit := 0
		if req.Limit != nil {
			limit = *req.Limit
		}
		filter := document.ContributionType(req.ContributionType)
		if _, err := v.PerformInteraction(req.InteractionTarget, dir, filter, limit); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}
	return v.Serialize(), nil
}

// Close ends a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	delete(m.sessions, id)
	m.logger.Info("session closed", slog.String("id", id))
	return nil
}

// CloseExplanation ends every session over ref and returns how many were
// closed.
func (m *Manager) CloseExplanation(ref storage.Ref) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	closed := 0
	for id, s := range m.sessions {
		if s.info.Ref == ref {
			delete(m.sessions, id)
			closed++
		}
	}
	return closed
}

// List returns the open sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Created.Equal(infos[j].Created) {
			return infos[i].Created.Before(infos[j].Created)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

func (m *Manager) get(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}
