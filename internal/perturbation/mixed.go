package perturbation

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"grnsim/internal/dynamics"
	"grnsim/internal/random"
)

// Mixed is a single condition combining basal-activation shifts with
// partial deletions and overexpressions of regulators. It is assembled with
// AddToDeltaBasalActivation, Delete and Overexpress before being applied.
type Mixed struct {
	base
	r              *rand.Rand
	deletion       random.Parameter
	overexpression random.Parameter
	deltaBasal     []float64
	deltaMax       []float64
}

// NewMixed starts an empty condition named label. Deletion and
// overexpression efficacies are drawn from the given parameters, typically
// uniform ranges inside [0, 1] and [0, +inf).
func NewMixed(r *rand.Rand, net *dynamics.GeneNetwork, label string, deletion, overexpression random.Parameter) *Mixed {
	n := net.Size()
	p := &Mixed{
		base:           newBase(net),
		r:              r,
		deletion:       deletion,
		overexpression: overexpression,
		deltaBasal:     make([]float64, n),
		deltaMax:       make([]float64, n),
	}
	p.labels = []string{label}
	p.matrix = mat.NewDense(1, n, nil)
	return p
}

func (p *Mixed) Kind() Kind {
	return KindMixed
}

// AddToDeltaBasalActivation accumulates scale*delta into the basal shift.
func (p *Mixed) AddToDeltaBasalActivation(delta []float64, scale float64) error {
	if len(delta) != len(p.deltaBasal) {
		return fmt.Errorf("%w: delta has %d genes, network has %d", ErrMalformed, len(delta), len(p.deltaBasal))
	}
	for i, d := range delta {
		p.deltaBasal[i] += scale * d
		p.matrix.Set(0, i, p.deltaBasal[i])
	}
	return nil
}

// Delete lowers the maximum transcription rate of a regulator by a drawn
// efficacy fraction of its wild-type value.
func (p *Mixed) Delete(net *dynamics.GeneNetwork, label string) error {
	idx, err := p.regulator(net, label)
	if err != nil {
		return err
	}
	p.deltaMax[idx] = -clampFraction(p.deletion.Draw(p.r)) * p.wildTypeMax[idx]
	return nil
}

// Overexpress raises the maximum transcription rate of a regulator by a
// drawn efficacy fraction of its wild-type value.
func (p *Mixed) Overexpress(net *dynamics.GeneNetwork, label string) error {
	idx, err := p.regulator(net, label)
	if err != nil {
		return err
	}
	eff := p.overexpression.Draw(p.r)
	if eff < 0 {
		eff = 0
	}
	p.deltaMax[idx] = eff * p.wildTypeMax[idx]
	return nil
}

func (p *Mixed) regulator(net *dynamics.GeneNetwork, label string) (int, error) {
	idx, ok := net.Topology.NodeIndex(label)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrGeneNotFound, label)
	}
	if !net.Topology.Nodes[idx].IsTF {
		return 0, fmt.Errorf("%w: %q", ErrNotRegulator, label)
	}
	return idx, nil
}

// DeltaBasalActivation is the accumulated basal shift, also row 0 of Matrix.
func (p *Mixed) DeltaBasalActivation() []float64 {
	return append([]float64(nil), p.deltaBasal...)
}

// DeltaMax is the change of each maximum transcription rate.
func (p *Mixed) DeltaMax() []float64 {
	return append([]float64(nil), p.deltaMax...)
}

func (p *Mixed) Apply(net *dynamics.GeneNetwork, row int) error {
	if err := p.check(net, row); err != nil {
		return err
	}
	for i, g := range net.Genes {
		g.Max = p.wildTypeMax[i] + p.deltaMax[i]
		if g.Max < 0 {
			g.Max = 0
		}
		g.PerturbBasalActivation(p.deltaBasal[i])
	}
	return nil
}

func clampFraction(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
