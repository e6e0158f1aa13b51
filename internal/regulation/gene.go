package regulation

import (
	"math"
	"math/rand"

	"grnsim/internal/model"
	"grnsim/internal/random"
)

// HillGene is the regulation function of one gene: a set of regulatory
// modules whose joint activation pattern selects a level from Alpha.
//
// Inputs holds the node indices of the gene's regulators, grouped by module
// and ordered activators-then-deactivators within each module. Alpha has
// 2^len(Modules) entries; bit j of an index is set when module j is active.
type HillGene struct {
	Delta          float64
	Max            float64
	DeltaProtein   float64
	MaxTranslation float64

	Inputs  []int
	Modules []*Module
	Alpha   []float64

	wildTypeAlpha []float64
}

// ModuleActivations evaluates every module on the regulator concentrations,
// which are indexed by node.
func (g *HillGene) ModuleActivations(regulators []float64) []float64 {
	activations := make([]float64, len(g.Modules))
	offset := 0
	for j, mod := range g.Modules {
		n := mod.NumInputs()
		x := make([]float64, n)
		for i := 0; i < n; i++ {
			x[i] = regulators[g.Inputs[offset+i]]
		}
		activations[j] = mod.Activation(x)
		offset += n
	}
	return activations
}

// EffectiveAlpha mixes the Alpha table over all joint module states, each
// weighted by the probability of that state given per-module activations.
func (g *HillGene) EffectiveAlpha(activations []float64) float64 {
	sum := 0.0
	for state, alpha := range g.Alpha {
		p := 1.0
		for j, m := range activations {
			if state&(1<<j) != 0 {
				p *= m
			} else {
				p *= 1 - m
			}
		}
		sum += alpha * p
	}
	return sum
}

func (g *HillGene) ProductionRate(regulators []float64) float64 {
	return g.Max * g.EffectiveAlpha(g.ModuleActivations(regulators))
}

func (g *HillGene) DegradationRate(x float64) float64 {
	return g.Delta * x
}

func (g *HillGene) TranslationRate(x float64) float64 {
	return g.MaxTranslation * x
}

func (g *HillGene) ProteinDegradationRate(y float64) float64 {
	return g.DeltaProtein * y
}

// BasalActivation is the level with no module active.
func (g *HillGene) BasalActivation() float64 {
	return g.Alpha[0]
}

// PerturbBasalActivation shifts every Alpha entry by delta. delta is first
// clamped so that the basal level stays in [0, 1], and each shifted entry is
// clamped to [0, 1]. The wild type is kept until the next restore.
func (g *HillGene) PerturbBasalActivation(delta float64) {
	if g.wildTypeAlpha == nil {
		g.wildTypeAlpha = append([]float64(nil), g.Alpha...)
	}
	base := g.wildTypeAlpha
	if base[0]+delta > 1 {
		delta = 1 - base[0]
	} else if base[0]+delta < 0 {
		delta = -base[0]
	}
	for i := range g.Alpha {
		g.Alpha[i] = clamp01(base[i] + delta)
	}
}

func (g *HillGene) RestoreWildTypeBasalActivation() {
	if g.wildTypeAlpha == nil {
		return
	}
	copy(g.Alpha, g.wildTypeAlpha)
	g.wildTypeAlpha = nil
}

// RandomizeRates draws half-lives and sets the non-dimensionalised maximum
// rates equal to the degradation rates.
func (g *HillGene) RandomizeRates(r *rand.Rand, kin Kinetics) {
	g.Delta = math.Ln2 / kin.HalfLife.Draw(r)
	g.Max = g.Delta
	if kin.ModelTranslation {
		g.DeltaProtein = math.Ln2 / kin.ProteinHalfLife.Draw(r)
		g.MaxTranslation = g.DeltaProtein
	}
}

// Randomize draws the complete gene: rates, module structure, module
// parameters and the Alpha table. Edge signs of net are updated to the
// realised polarity of every input.
func (g *HillGene) Randomize(r *rand.Rand, net *model.Network, idx int, kin Kinetics) error {
	g.RandomizeRates(r, kin)
	g.RandomizeStructure(r, net, idx, kin)
	for _, mod := range g.Modules {
		mod.RandomizeParameters(r, kin.K, kin.N)
	}
	g.RandomizeAlpha(r, kin)
	return g.AssignEdgeSigns(net, idx)
}

// RandomizeStructure partitions the inputs of node idx into modules by stick
// breaking and decides the polarity and role of every input.
func (g *HillGene) RandomizeStructure(r *rand.Rand, net *model.Network, idx int, kin Kinetics) {
	g.Modules = nil
	g.Inputs = nil
	g.wildTypeAlpha = nil

	var groups [][]int
	for _, in := range net.Inputs(idx) {
		c := r.Intn(len(groups) + 1)
		if c == len(groups) {
			groups = append(groups, nil)
		}
		groups[c] = append(groups[c], in)
	}

	for _, group := range groups {
		mod, ordered := buildModule(r, net, idx, group, kin)
		g.Modules = append(g.Modules, mod)
		g.Inputs = append(g.Inputs, ordered...)
	}
}

func buildModule(r *rand.Rand, net *model.Network, target int, group []int, kin Kinetics) (*Module, []int) {
	types := make([]model.EdgeType, len(group))
	enhancers, inhibitors := 0, 0
	for i, src := range group {
		types[i] = net.Edges[net.EdgeIndex(src, target)].Type
		switch types[i] {
		case model.EdgeEnhancer:
			enhancers++
		case model.EdgeInhibitor:
			inhibitors++
		}
	}

	isEnhancer := enhancers > inhibitors
	if enhancers == inhibitors {
		isEnhancer = random.Bool(r)
	}

	activator := make([]bool, len(group))
	var free []int
	numActivators := 0
	for i, typ := range types {
		switch typ {
		case model.EdgeEnhancer:
			activator[i] = isEnhancer
		case model.EdgeInhibitor:
			activator[i] = !isEnhancer
		default:
			activator[i] = random.Bool(r)
			free = append(free, i)
		}
		if activator[i] {
			numActivators++
		}
	}
	if numActivators == 0 {
		candidates := free
		if len(candidates) == 0 {
			candidates = make([]int, len(group))
			for i := range candidates {
				candidates[i] = i
			}
		}
		activator[candidates[r.Intn(len(candidates))]] = true
		numActivators = 1
	}

	ordered := make([]int, 0, len(group))
	for i, src := range group {
		if activator[i] {
			ordered = append(ordered, src)
		}
	}
	for i, src := range group {
		if !activator[i] {
			ordered = append(ordered, src)
		}
	}

	mod := &Module{
		IsEnhancer:      isEnhancer,
		NumActivators:   numActivators,
		NumDeactivators: len(group) - numActivators,
	}
	if len(group) > 1 {
		mod.BindsAsComplex = r.Float64() < kin.ComplexProbability
	}
	return mod, ordered
}

// RandomizeAlpha draws one signed activation delta per module and builds the
// Alpha table from a basal level that depends on the mix of module polarities.
func (g *HillGene) RandomizeAlpha(r *rand.Rand, kin Kinetics) {
	numModules := len(g.Modules)
	if numModules == 0 {
		g.Alpha = []float64{1}
		return
	}

	deltas := make([]float64, numModules)
	enhancers, repressors := 0, 0
	positive, negative := 0.0, 0.0
	for j, mod := range g.Modules {
		d := kin.DeltaActivation.Draw(r)
		if mod.IsEnhancer {
			enhancers++
			positive += d
		} else {
			d = -d
			repressors++
			negative += d
		}
		deltas[j] = d
	}

	var basal float64
	switch {
	case enhancers == 0:
		basal = 1
	case repressors == 0:
		basal = kin.LowBasal.Draw(r)
	default:
		basal = kin.MediumBasal.Draw(r)
	}

	if positive > 0 && basal+positive > 1 {
		scale := (1 - basal) / positive
		for j := range deltas {
			if deltas[j] > 0 {
				deltas[j] *= scale
			}
		}
	}
	floor := math.Min(kin.WeakActivation, basal)
	if negative < 0 && basal+negative < floor {
		scale := (basal - floor) / -negative
		for j := range deltas {
			if deltas[j] < 0 {
				deltas[j] *= scale
			}
		}
	}

	g.Alpha = make([]float64, 1<<numModules)
	for state := range g.Alpha {
		a := basal
		for j, d := range deltas {
			if state&(1<<j) != 0 {
				a += d
			}
		}
		g.Alpha[state] = clamp01(a)
	}
	g.wildTypeAlpha = nil
}

// AssignEdgeSigns writes the realised sign of each input edge into net.
func (g *HillGene) AssignEdgeSigns(net *model.Network, idx int) error {
	offset := 0
	for _, mod := range g.Modules {
		for i, sign := range mod.EdgeSigns() {
			if err := net.SetEdgeType(g.Inputs[offset+i], idx, sign); err != nil {
				return err
			}
		}
		offset += mod.NumInputs()
	}
	return nil
}

func (g *HillGene) Clone() *HillGene {
	c := &HillGene{
		Delta:          g.Delta,
		Max:            g.Max,
		DeltaProtein:   g.DeltaProtein,
		MaxTranslation: g.MaxTranslation,
		Inputs:         append([]int(nil), g.Inputs...),
		Alpha:          append([]float64(nil), g.Alpha...),
	}
	if g.wildTypeAlpha != nil {
		c.wildTypeAlpha = append([]float64(nil), g.wildTypeAlpha...)
	}
	c.Modules = make([]*Module, len(g.Modules))
	for i, mod := range g.Modules {
		c.Modules[i] = mod.clone()
	}
	return c
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
