package perturbation

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"grnsim/internal/dynamics"
)

// SingleGene scales the maximum transcription rate of one gene per row:
// a factor of 0 is a knockout, 0.5 a heterozygous knockdown.
type SingleGene struct {
	base
	genes []int
}

// NewSingleGene builds one row per listed gene, or per network gene when
// none are given. Every other column keeps its wild-type rate.
func NewSingleGene(net *dynamics.GeneNetwork, factor float64, genes ...int) (*SingleGene, error) {
	if factor < 0 {
		return nil, fmt.Errorf("%w: factor %g must be >= 0", ErrMalformed, factor)
	}
	if len(genes) == 0 {
		genes = make([]int, net.Size())
		for i := range genes {
			genes[i] = i
		}
	}
	if len(genes) == 0 {
		return nil, fmt.Errorf("%w: empty network", ErrMalformed)
	}

	p := &SingleGene{base: newBase(net), genes: append([]int(nil), genes...)}
	p.matrix = mat.NewDense(len(genes), net.Size(), nil)
	p.labels = make([]string, len(genes))
	for row, g := range genes {
		if g < 0 || g >= net.Size() {
			return nil, fmt.Errorf("%w: index %d", ErrGeneNotFound, g)
		}
		p.matrix.SetRow(row, p.wildTypeMax)
		p.matrix.Set(row, g, p.wildTypeMax[g]*factor)
		p.labels[row] = net.Topology.Nodes[g].Label
	}
	return p, nil
}

func (p *SingleGene) Kind() Kind {
	return KindSingleGene
}

// Genes lists the perturbed gene of each row.
func (p *SingleGene) Genes() []int {
	return append([]int(nil), p.genes...)
}

func (p *SingleGene) Apply(net *dynamics.GeneNetwork, row int) error {
	if err := p.check(net, row); err != nil {
		return err
	}
	applyMaxRow(net, p.matrix, row)
	return nil
}

// Dual perturbs a pair of regulators per row, choosing the pairs that share
// the most targets.
type Dual struct {
	base
	pairs [][2]int
}

// NewDual picks up to numPairs regulator pairs with at least one common
// target, ordered by descending shared-target count. Ties are broken by a
// random permutation drawn from r before a stable sort. Fewer rows are built
// when fewer eligible pairs exist.
func NewDual(r *rand.Rand, net *dynamics.GeneNetwork, factor float64, numPairs int) (*Dual, error) {
	if factor < 0 || numPairs < 0 {
		return nil, fmt.Errorf("%w: factor=%g pairs=%d", ErrMalformed, factor, numPairs)
	}

	type candidate struct {
		pair   [2]int
		shared int
	}
	regulators := net.Topology.Regulators()
	targets := make(map[int]map[int]struct{}, len(regulators))
	for _, reg := range regulators {
		set := make(map[int]struct{})
		for _, tgt := range net.Topology.Targets(reg) {
			set[tgt] = struct{}{}
		}
		targets[reg] = set
	}

	var candidates []candidate
	for i := 0; i < len(regulators); i++ {
		for j := i + 1; j < len(regulators); j++ {
			a, b := regulators[i], regulators[j]
			shared := 0
			for tgt := range targets[a] {
				if _, ok := targets[b][tgt]; ok {
					shared++
				}
			}
			if shared > 0 {
				candidates = append(candidates, candidate{pair: [2]int{a, b}, shared: shared})
			}
		}
	}

	r.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].shared > candidates[j].shared
	})
	if numPairs > len(candidates) {
		numPairs = len(candidates)
	}

	p := &Dual{base: newBase(net)}
	p.pairs = make([][2]int, numPairs)
	p.labels = make([]string, numPairs)
	if numPairs == 0 {
		return p, nil
	}
	p.matrix = mat.NewDense(numPairs, net.Size(), nil)
	for row := 0; row < numPairs; row++ {
		pair := candidates[row].pair
		p.pairs[row] = pair
		p.matrix.SetRow(row, p.wildTypeMax)
		for _, g := range pair {
			p.matrix.Set(row, g, p.wildTypeMax[g]*factor)
		}
		p.labels[row] = net.Topology.Nodes[pair[0]].Label + "-" + net.Topology.Nodes[pair[1]].Label
	}
	return p, nil
}

func (p *Dual) Kind() Kind {
	return KindDual
}

func (p *Dual) Pairs() [][2]int {
	return append([][2]int(nil), p.pairs...)
}

func (p *Dual) Apply(net *dynamics.GeneNetwork, row int) error {
	if err := p.check(net, row); err != nil {
		return err
	}
	applyMaxRow(net, p.matrix, row)
	return nil
}

func applyMaxRow(net *dynamics.GeneNetwork, m *mat.Dense, row int) {
	for i, g := range net.Genes {
		g.Max = m.At(row, i)
	}
}
