// Package dynamics turns a regulated gene network into the right-hand sides of
// its deterministic and stochastic rate equations.
package dynamics

import (
	"errors"
	"fmt"
	"math/rand"

	"grnsim/internal/model"
	"grnsim/internal/regulation"
)

var ErrGeneCount = errors.New("gene count does not match topology")

// GeneNetwork binds a topology to one HillGene per node. State vectors are
// laid out as [x_0..x_{n-1}] for mRNA, followed by [y_0..y_{n-1}] for
// protein when translation is modelled.
type GeneNetwork struct {
	Topology         *model.Network
	Genes            []*regulation.HillGene
	ModelTranslation bool
}

func NewGeneNetwork(topology *model.Network, modelTranslation bool) *GeneNetwork {
	genes := make([]*regulation.HillGene, topology.Size())
	for i := range genes {
		genes[i] = &regulation.HillGene{}
	}
	return &GeneNetwork{Topology: topology, Genes: genes, ModelTranslation: modelTranslation}
}

// Randomize marks the regulators of the topology and draws every gene.
func (n *GeneNetwork) Randomize(r *rand.Rand, kin regulation.Kinetics) error {
	kin.ModelTranslation = n.ModelTranslation
	n.Topology.MarkRegulators()
	for i, g := range n.Genes {
		if err := g.Randomize(r, n.Topology, i, kin); err != nil {
			return fmt.Errorf("gene %s: %w", n.Topology.Nodes[i].Label, err)
		}
	}
	return nil
}

func (n *GeneNetwork) Size() int {
	return len(n.Genes)
}

// StateSize is the length of the flat state vector.
func (n *GeneNetwork) StateSize() int {
	if n.ModelTranslation {
		return 2 * len(n.Genes)
	}
	return len(n.Genes)
}

// Rates returns the production and degradation rate of every state
// component.
func (n *GeneNetwork) Rates(xy []float64) (production, degradation []float64) {
	size := n.Size()
	production = make([]float64, n.StateSize())
	degradation = make([]float64, n.StateSize())

	regulators := xy[:size]
	if n.ModelTranslation {
		regulators = xy[size : 2*size]
	}
	for i, g := range n.Genes {
		production[i] = g.ProductionRate(regulators)
		degradation[i] = g.DegradationRate(xy[i])
		if n.ModelTranslation {
			production[size+i] = g.TranslationRate(xy[i])
			degradation[size+i] = g.ProteinDegradationRate(xy[size+i])
		}
	}
	return production, degradation
}

// Dxydt writes the instantaneous derivative of xy into out. It reads only its
// arguments and the gene parameters.
func (n *GeneNetwork) Dxydt(xy, out []float64) {
	production, degradation := n.Rates(xy)
	for i := range production {
		out[i] = production[i] - degradation[i]
	}
}

// WildTypeMax returns the current maximum transcription rate of every gene.
func (n *GeneNetwork) WildTypeMax() []float64 {
	out := make([]float64, len(n.Genes))
	for i, g := range n.Genes {
		out[i] = g.Max
	}
	return out
}

// Params snapshots every gene in node order.
func (n *GeneNetwork) Params() []regulation.GeneParams {
	out := make([]regulation.GeneParams, len(n.Genes))
	for i, g := range n.Genes {
		out[i] = g.Params()
	}
	return out
}

// LoadParams rebuilds every gene from saved parameters. Every input must
// name a node with an edge into the gene.
func (n *GeneNetwork) LoadParams(params []regulation.GeneParams) error {
	if len(params) != n.Topology.Size() {
		return fmt.Errorf("%w: %d params for %d nodes", ErrGeneCount, len(params), n.Topology.Size())
	}
	genes := make([]*regulation.HillGene, len(params))
	for i, p := range params {
		g, err := regulation.FromParams(p)
		if err != nil {
			return fmt.Errorf("gene %s: %w", n.Topology.Nodes[i].Label, err)
		}
		for _, in := range p.Inputs {
			if in < 0 || in >= n.Topology.Size() || n.Topology.EdgeIndex(in, i) < 0 {
				return fmt.Errorf("gene %s: %w: input %d is not a regulator edge", n.Topology.Nodes[i].Label, regulation.ErrInvalidParams, in)
			}
		}
		genes[i] = g
	}
	n.Genes = genes
	return nil
}

// Clone deep-copies the topology and all genes so the copy can be perturbed
// and integrated independently.
func (n *GeneNetwork) Clone() *GeneNetwork {
	genes := make([]*regulation.HillGene, len(n.Genes))
	for i, g := range n.Genes {
		genes[i] = g.Clone()
	}
	return &GeneNetwork{
		Topology:         n.Topology.Clone(),
		Genes:            genes,
		ModelTranslation: n.ModelTranslation,
	}
}
