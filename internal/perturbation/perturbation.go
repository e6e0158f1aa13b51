// Package perturbation builds the parameter changes that realise an
// experiment and applies them to a gene network.
package perturbation

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"grnsim/internal/dynamics"
)

var (
	ErrMalformed    = errors.New("malformed perturbation")
	ErrGeneNotFound = errors.New("gene not found")
	ErrNotRegulator = errors.New("gene is not a regulator")
)

type Kind int

const (
	KindSingleGene Kind = iota + 1
	KindDual
	KindMultifactorialWeak
	KindMultifactorialStrong
	KindMixed
)

func (k Kind) String() string {
	switch k {
	case KindSingleGene:
		return "single_gene"
	case KindDual:
		return "dual"
	case KindMultifactorialWeak:
		return "multifactorial_weak"
	case KindMultifactorialStrong:
		return "multifactorial_strong"
	case KindMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Perturbation is a fixed set of rows, each a complete parameter change of
// every gene. Values are immutable once built, so one Perturbation may be
// applied to several independent copies of the same network; a given
// network must only be perturbed by one caller at a time.
type Perturbation interface {
	Kind() Kind
	Len() int
	Labels() []string
	// Matrix holds one row per perturbation and one column per gene.
	Matrix() *mat.Dense
	Apply(net *dynamics.GeneNetwork, row int) error
	RestoreWildType(net *dynamics.GeneNetwork)

	sealed()
}

// base holds the wild type captured at construction and the row matrix.
type base struct {
	wildTypeMax []float64
	matrix      *mat.Dense
	labels      []string
}

func newBase(net *dynamics.GeneNetwork) base {
	return base{wildTypeMax: net.WildTypeMax()}
}

func (b *base) Len() int {
	if b.matrix == nil {
		return 0
	}
	rows, _ := b.matrix.Dims()
	return rows
}

func (b *base) Labels() []string {
	return append([]string(nil), b.labels...)
}

func (b *base) Matrix() *mat.Dense {
	if b.matrix == nil {
		return nil
	}
	return mat.DenseCopyOf(b.matrix)
}

// WildTypeMax returns the maximum transcription rates captured at
// construction.
func (b *base) WildTypeMax() []float64 {
	return append([]float64(nil), b.wildTypeMax...)
}

// RestoreWildType resets maximum rates and basal activations.
func (b *base) RestoreWildType(net *dynamics.GeneNetwork) {
	for i, g := range net.Genes {
		g.Max = b.wildTypeMax[i]
		g.RestoreWildTypeBasalActivation()
	}
}

func (b *base) check(net *dynamics.GeneNetwork, row int) error {
	if net.Size() != len(b.wildTypeMax) {
		return fmt.Errorf("%w: built for %d genes, network has %d", ErrMalformed, len(b.wildTypeMax), net.Size())
	}
	if row < 0 || row >= b.Len() {
		return fmt.Errorf("%w: row %d out of range [0, %d)", ErrMalformed, row, b.Len())
	}
	return nil
}

func (base) sealed() {}
