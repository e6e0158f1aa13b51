package regulation

import (
	"errors"
	"fmt"
)

var ErrInvalidParams = errors.New("invalid gene parameters")

type ModuleParams struct {
	IsEnhancer      bool      `json:"is_enhancer"`
	BindsAsComplex  bool      `json:"binds_as_complex"`
	NumActivators   int       `json:"num_activators"`
	NumDeactivators int       `json:"num_deactivators"`
	K               []float64 `json:"k"`
	N               []float64 `json:"n"`
}

// GeneParams is the complete serialisable state of a HillGene.
type GeneParams struct {
	Delta          float64        `json:"delta"`
	Max            float64        `json:"max"`
	DeltaProtein   float64        `json:"delta_protein,omitempty"`
	MaxTranslation float64        `json:"max_translation,omitempty"`
	Inputs         []int          `json:"inputs"`
	Alpha          []float64      `json:"alpha"`
	Modules        []ModuleParams `json:"modules"`
}

// Params snapshots the gene. The returned record shares no memory with g.
func (g *HillGene) Params() GeneParams {
	p := GeneParams{
		Delta:          g.Delta,
		Max:            g.Max,
		DeltaProtein:   g.DeltaProtein,
		MaxTranslation: g.MaxTranslation,
		Inputs:         append([]int(nil), g.Inputs...),
		Alpha:          append([]float64(nil), g.Alpha...),
		Modules:        make([]ModuleParams, len(g.Modules)),
	}
	for i, mod := range g.Modules {
		p.Modules[i] = ModuleParams{
			IsEnhancer:      mod.IsEnhancer,
			BindsAsComplex:  mod.BindsAsComplex,
			NumActivators:   mod.NumActivators,
			NumDeactivators: mod.NumDeactivators,
			K:               append([]float64(nil), mod.K...),
			N:               append([]float64(nil), mod.N...),
		}
	}
	return p
}

// FromParams builds a gene from a validated parameter record.
func FromParams(p GeneParams) (*HillGene, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	g := &HillGene{
		Delta:          p.Delta,
		Max:            p.Max,
		DeltaProtein:   p.DeltaProtein,
		MaxTranslation: p.MaxTranslation,
		Inputs:         append([]int(nil), p.Inputs...),
		Alpha:          append([]float64(nil), p.Alpha...),
		Modules:        make([]*Module, len(p.Modules)),
	}
	for i, mp := range p.Modules {
		g.Modules[i] = &Module{
			IsEnhancer:      mp.IsEnhancer,
			BindsAsComplex:  mp.BindsAsComplex,
			NumActivators:   mp.NumActivators,
			NumDeactivators: mp.NumDeactivators,
			K:               append([]float64(nil), mp.K...),
			N:               append([]float64(nil), mp.N...),
		}
	}
	return g, nil
}

func (p GeneParams) Validate() error {
	if p.Delta <= 0 || p.Max < 0 {
		return fmt.Errorf("%w: delta=%g max=%g", ErrInvalidParams, p.Delta, p.Max)
	}
	if p.DeltaProtein < 0 || p.MaxTranslation < 0 {
		return fmt.Errorf("%w: protein rates must be >= 0", ErrInvalidParams)
	}
	if want := 1 << len(p.Modules); len(p.Alpha) != want {
		return fmt.Errorf("%w: %d modules need %d alpha values, got %d", ErrInvalidParams, len(p.Modules), want, len(p.Alpha))
	}
	for i, a := range p.Alpha {
		if a < 0 || a > 1 {
			return fmt.Errorf("%w: alpha[%d]=%g outside [0, 1]", ErrInvalidParams, i, a)
		}
	}
	inputs := 0
	for i, mp := range p.Modules {
		n := mp.NumActivators + mp.NumDeactivators
		if mp.NumActivators < 1 || mp.NumDeactivators < 0 {
			return fmt.Errorf("%w: module %d needs at least one activator", ErrInvalidParams, i)
		}
		if len(mp.K) != n || len(mp.N) != n {
			return fmt.Errorf("%w: module %d has %d inputs but %d k and %d n values", ErrInvalidParams, i, n, len(mp.K), len(mp.N))
		}
		for j := 0; j < n; j++ {
			if mp.K[j] <= 0 || mp.N[j] <= 0 {
				return fmt.Errorf("%w: module %d input %d k=%g n=%g", ErrInvalidParams, i, j, mp.K[j], mp.N[j])
			}
		}
		inputs += n
	}
	if inputs != len(p.Inputs) {
		return fmt.Errorf("%w: modules cover %d inputs, gene lists %d", ErrInvalidParams, inputs, len(p.Inputs))
	}
	return nil
}
