package perturbation

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"grnsim/internal/dynamics"
)

// Strength selects how multifactorial deltas are drawn.
type Strength int

const (
	// Weak draws a small Gaussian shift of every gene's basal activation.
	Weak Strength = iota
	// Strong resets a random subset of genes to a uniform basal level.
	Strong
)

// Multifactorial shifts the basal activation of every gene at once. Each
// row is an independent condition.
type Multifactorial struct {
	base
	strength      Strength
	wildTypeBasal []float64
}

type MultifactorialOptions struct {
	Strength Strength
	Rows     int
	// Stdev is the standard deviation of the weak deltas.
	Stdev float64
	// Probability that a gene is perturbed in a strong row.
	Probability float64
}

// NewMultifactorial draws the delta matrix. A weak delta is N(0, Stdev). A
// strong delta is, with the given probability, U(0,1) minus the wild-type
// basal activation, so that the perturbed basal level is uniform in [0,1];
// otherwise it is 0.
func NewMultifactorial(r *rand.Rand, net *dynamics.GeneNetwork, opts MultifactorialOptions) (*Multifactorial, error) {
	if opts.Rows < 0 {
		return nil, fmt.Errorf("%w: rows=%d", ErrMalformed, opts.Rows)
	}
	switch opts.Strength {
	case Weak:
		if opts.Stdev < 0 {
			return nil, fmt.Errorf("%w: stdev=%g", ErrMalformed, opts.Stdev)
		}
	case Strong:
		if opts.Probability < 0 || opts.Probability > 1 {
			return nil, fmt.Errorf("%w: probability=%g", ErrMalformed, opts.Probability)
		}
	default:
		return nil, fmt.Errorf("%w: strength %d", ErrMalformed, opts.Strength)
	}

	n := net.Size()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty network", ErrMalformed)
	}
	p := &Multifactorial{base: newBase(net), strength: opts.Strength, wildTypeBasal: make([]float64, n)}
	for i, g := range net.Genes {
		p.wildTypeBasal[i] = g.BasalActivation()
	}
	p.labels = make([]string, opts.Rows)
	if opts.Rows == 0 {
		return p, nil
	}

	p.matrix = mat.NewDense(opts.Rows, n, nil)
	for row := 0; row < opts.Rows; row++ {
		for g := 0; g < n; g++ {
			var delta float64
			switch opts.Strength {
			case Weak:
				delta = opts.Stdev * r.NormFloat64()
			case Strong:
				if r.Float64() < opts.Probability {
					delta = r.Float64() - p.wildTypeBasal[g]
				}
			}
			p.matrix.Set(row, g, delta)
		}
		p.labels[row] = fmt.Sprintf("multifactorial_%d", row+1)
	}
	return p, nil
}

func (p *Multifactorial) Kind() Kind {
	if p.strength == Strong {
		return KindMultifactorialStrong
	}
	return KindMultifactorialWeak
}

// WildTypeBasal returns the basal activations captured at construction.
func (p *Multifactorial) WildTypeBasal() []float64 {
	return append([]float64(nil), p.wildTypeBasal...)
}

func (p *Multifactorial) Apply(net *dynamics.GeneNetwork, row int) error {
	if err := p.check(net, row); err != nil {
		return err
	}
	for i, g := range net.Genes {
		g.Max = p.wildTypeMax[i]
		g.PerturbBasalActivation(p.matrix.At(row, i))
	}
	return nil
}
