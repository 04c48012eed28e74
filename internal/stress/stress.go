// Package stress generates large synthetic GAFs for exercising pruning and
// rendering limits.
//
// Every generated graph has one input "0" and one conclusion "-1" and uses
// the bipolar framework. Roughly four relations in five are supports.
package stress

import (
	"fmt"
	"math/rand/v2"

	"github.com/Benny93/argflow-go/internal/gaf"
)

const (
	// InputID is the id of the single input node.
	InputID = "0"
	// ConclusionID is the id of the single conclusion node.
	ConclusionID = "-1"

	supportRatio = 0.8
)

// Single builds a one-layer graph: n arguments, each supported or attacked
// by the input and in turn supporting or attacking the conclusion.
func Single(n int, seed uint64) (*gaf.GAF, error) {
	if n < 0 {
		return nil, fmt.Errorf("stress graph needs a non-negative argument count, got %d", n)
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	g, err := endpoints()
	if err != nil {
		return nil, err
	}

	for i := 1; i <= n; i++ {
		id := gaf.IntID(i)
		if err := g.AddArgument(id, gaf.Strength(rng.Float64()), gaf.TextPayload(id)); err != nil {
			return nil, err
		}
		rel := relation(rng)
		if err := g.AddRelation(InputID, id, rel); err != nil {
			return nil, err
		}
		if err := g.AddRelation(id, ConclusionID, rel); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// MultiLayer builds layers fully connected layers of width arguments each.
// The input feeds the first layer and the last layer feeds the conclusion.
// Layer k uses ids k*(width+1)+1 through k*(width+1)+width.
func MultiLayer(layers, width int, seed uint64) (*gaf.GAF, error) {
	if layers < 1 || width < 1 {
		return nil, fmt.Errorf("stress graph needs at least one layer of one argument, got %d x %d", layers, width)
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	g, err := endpoints()
	if err != nil {
		return nil, err
	}

	prev := []string{InputID}
	for k := 0; k < layers; k++ {
		current := make([]string, 0, width)
		for i := 1; i <= width; i++ {
			id := gaf.IntID(k*(width+1) + i)
			if err := g.AddArgument(id, gaf.Strength(rng.Float64()), gaf.TextPayload(id)); err != nil {
				return nil, err
			}
			rel := relation(rng)
			for _, src := range prev {
				if err := g.AddRelation(src, id, rel); err != nil {
					return nil, err
				}
			}
			if k == layers-1 {
				if err := g.AddRelation(id, ConclusionID, rel); err != nil {
					return nil, err
				}
			}
			current = append(current, id)
		}
		prev = current
	}
	return g, nil
}

func endpoints() (*gaf.GAF, error) {
	g := gaf.New()
	if err := g.AddInput(InputID, gaf.TextPayload("Input")); err != nil {
		return nil, err
	}
	if err := g.AddConclusion(ConclusionID, 0.8, "True", gaf.TextPayload("Conclusion")); err != nil {
		return nil, err
	}
	return g, nil
}

func relation(rng *rand.Rand) gaf.Relation {
	if rng.Float64() < supportRatio {
		return gaf.BipolarSupport
	}
	return gaf.BipolarAttack
}
