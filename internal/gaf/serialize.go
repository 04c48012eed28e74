package gaf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/logging"
)

// DefaultName is the document name used when none is given.
const DefaultName = "GAF"

// FileNamer returns the base name (without extension) of a payload file.
// Implementations must return distinct names across calls.
type FileNamer interface {
	NextName() string
}

// FileNamerFunc adapts a function to FileNamer.
type FileNamerFunc func() string

// NextName implements FileNamer.
func (f FileNamerFunc) NextName() string { return f() }

// TimestampNamer names payload files after the current time, a process-wide
// counter and a short random suffix, so that names stay unique under
// sub-second serialization.
type TimestampNamer struct {
	Now func() time.Time
}

var payloadCounter atomic.Uint64

// NextName implements FileNamer.
func (n TimestampNamer) NextName() string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	t := now()
	return fmt.Sprintf("%d.%06d_%d_%s",
		t.Unix(), t.Nanosecond()/1000, payloadCounter.Add(1), uuid.NewString()[:8])
}

// Serializer converts a GAF into a document, writing image payloads as files
// under RootDir/PayloadsDir.
type Serializer struct {
	RootDir     string
	PayloadsDir string
	Namer       FileNamer

	logger *slog.Logger
}

// NewSerializer creates a serializer with the default file namer.
func NewSerializer(rootDir, payloadsDir string) *Serializer {
	return &Serializer{
		RootDir:     rootDir,
		PayloadsDir: payloadsDir,
		Namer:       TimestampNamer{},
		logger:      logging.New("serializer"),
	}
}

// Serialize is shorthand for NewSerializer(rootDir, payloadsDir).Serialize(name, g).
func (g *GAF) Serialize(name, rootDir, payloadsDir string) (*document.Document, error) {
	return NewSerializer(rootDir, payloadsDir).Serialize(name, g)
}

// Serialize builds the document for g.
//
// Input children are always rendered as neutral; argument children carry
// their relation value; conclusions get a certainty of confidence*100 and,
// without a payload of their own, their predicted class as text. A failed
// payload write aborts the whole document; files written before the failure
// stay on disk.
func (s *Serializer) Serialize(name string, g *GAF) (*document.Document, error) {
	if name == "" {
		name = DefaultName
	}
	if err := g.checkEndpoints(); err != nil {
		return nil, err
	}

	doc := document.New(name)
	written := 0

	for _, node := range g.Inputs() {
		children := make(map[string]document.Child)
		for _, e := range g.RelationsFrom(node.ID) {
			children[e.Target] = document.Child{ContributionType: document.ContributionNeutral}
		}
		rec, n, err := s.record(document.NodeInput, node.Payload, children)
		if err != nil {
			return nil, fmt.Errorf("serializing input %q: %w", node.ID, err)
		}
		written += n
		doc.Input = append(doc.Input, node.ID)
		doc.Nodes[node.ID] = rec
	}

	for _, node := range g.Arguments() {
		children := make(map[string]document.Child)
		for _, e := range g.RelationsFrom(node.ID) {
			children[e.Target] = document.Child{ContributionType: e.Relation.Contribution()}
		}
		rec, n, err := s.record(document.NodeRegular, node.Payload, children)
		if err != nil {
			return nil, fmt.Errorf("serializing argument %q: %w", node.ID, err)
		}
		written += n
		if node.Strength != nil {
			strength := *node.Strength
			rec.Strength = &strength
		}
		doc.Nodes[node.ID] = rec
	}

	for _, node := range g.Conclusions() {
		payload := node.Payload
		if payload == nil {
			payload = TextPayload(node.PredictedClass)
		}
		rec, n, err := s.record(document.NodeConclusion, payload, map[string]document.Child{})
		if err != nil {
			return nil, fmt.Errorf("serializing conclusion %q: %w", node.ID, err)
		}
		written += n
		certainty := node.Confidence * 100
		rec.Certainty = &certainty
		doc.Conclusion = append(doc.Conclusion, node.ID)
		doc.Nodes[node.ID] = rec
	}

	s.log().Debug("serialized gaf",
		slog.String("name", name),
		slog.Int("nodes", len(doc.Nodes)),
		slog.Int("payload_files", written))
	return doc, nil
}

// record builds a node record and returns the number of files written.
func (s *Serializer) record(t document.NodeType, payload *Payload, children map[string]document.Child) (*document.Node, int, error) {
	rec := &document.Node{NodeType: t, Children: children}
	if payload == nil {
		return rec, 0, nil
	}
	value, n, err := s.materialize(payload)
	if err != nil {
		return nil, n, err
	}
	rec.ContentType = document.ContentType(payload.Kind())
	rec.Payload = value
	return rec, n, nil
}

func (s *Serializer) materialize(p *Payload) (*document.Payload, int, error) {
	switch p.Kind() {
	case PayloadText:
		return document.TextPayload(p.Text()), 0, nil
	case PayloadImage:
		path, err := s.writeFile(s.namer().NextName()+".jpg", p.Image())
		if err != nil {
			return nil, 0, err
		}
		return document.TextPayload(path), 1, nil
	case PayloadImagePair:
		base := s.namer().NextName()
		fst, snd := p.Pair()
		fstPath, err := s.writeFile(base+"_fst.jpg", fst)
		if err != nil {
			return nil, 0, err
		}
		sndPath, err := s.writeFile(base+"_snd.jpg", snd)
		if err != nil {
			return nil, 1, err
		}
		return document.PairPayload(fstPath, sndPath), 2, nil
	default:
		return nil, 0, fmt.Errorf("%w: payload has no content type", ErrInvalidPayload)
	}
}

// writeFile writes data to RootDir/PayloadsDir/filename and returns the path
// relative to RootDir.
func (s *Serializer) writeFile(filename string, data []byte) (rel string, err error) {
	rel = filepath.Join(s.PayloadsDir, filename)
	path := filepath.Join(s.RootDir, rel)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			rel, err = "", fmt.Errorf("%w: closing %s: %v", ErrPayloadWrite, path, cerr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("%w: writing %s: %v", ErrPayloadWrite, path, err)
	}
	return rel, nil
}

func (s *Serializer) namer() FileNamer {
	if s.Namer == nil {
		return TimestampNamer{}
	}
	return s.Namer
}

func (s *Serializer) log() *slog.Logger {
	if s.logger == nil {
		return logging.New("serializer")
	}
	return s.logger
}

// checkEndpoints verifies that every relation connects two added nodes.
func (g *GAF) checkEndpoints() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for key := range g.edges {
		if _, ok := g.nodes[key.source]; !ok {
			return fmt.Errorf("relation %q -> %q: %w: source was never added", key.source, key.target, ErrUnknownNode)
		}
		if _, ok := g.nodes[key.target]; !ok {
			return fmt.Errorf("relation %q -> %q: %w: target was never added", key.source, key.target, ErrUnknownNode)
		}
	}
	return nil
}
