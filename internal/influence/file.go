package influence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot is a precomputed influence graph together with the prediction it
// explains. It is the on-disk form consumed by the static influence mapper.
type Snapshot struct {
	PredictedClass string           `json:"predicted_class" yaml:"predicted_class"`
	Confidence     float64          `json:"confidence" yaml:"confidence"`
	Nodes          []SnapshotNode   `json:"nodes" yaml:"nodes"`
	Influences     []SnapshotInflux `json:"influences" yaml:"influences"`
}

// SnapshotNode is a node entry of a Snapshot.
type SnapshotNode struct {
	ID    string     `json:"id" yaml:"id"`
	Attrs Attributes `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// SnapshotInflux is an influence entry of a Snapshot.
type SnapshotInflux struct {
	Source string     `json:"source" yaml:"source"`
	Target string     `json:"target" yaml:"target"`
	Attrs  Attributes `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Graph builds the influence graph described by the snapshot.
func (s *Snapshot) Graph() *Graph {
	g := NewGraph()
	for _, n := range s.Nodes {
		g.AddNode(n.ID, n.Attrs)
	}
	for _, inf := range s.Influences {
		g.AddInfluence(inf.Source, inf.Target, inf.Attrs)
	}
	return g
}

// LoadSnapshot reads a snapshot file (YAML or JSON).
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read influence snapshot: %w", err)
	}
	return ParseSnapshot(data, filepath.Ext(path))
}

// ParseSnapshot parses a snapshot. ext is a format hint (".json", ".yaml",
// ".yml"); an empty hint detects the format from content.
func ParseSnapshot(data []byte, ext string) (*Snapshot, error) {
	ext = strings.ToLower(ext)
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}

	var s Snapshot
	if ext == ".json" {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse influence snapshot json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse influence snapshot yaml: %w", err)
		}
	}

	for i, n := range s.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("influence snapshot: node %d has no id", i)
		}
	}
	for i, inf := range s.Influences {
		if inf.Source == "" || inf.Target == "" {
			return nil, fmt.Errorf("influence snapshot: influence %d needs source and target", i)
		}
	}
	return &s, nil
}
