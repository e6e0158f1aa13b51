package regulation

import "grnsim/internal/random"

// Kinetics holds the distributions kinetic constants and module structure are
// drawn from.
type Kinetics struct {
	K               random.Parameter
	N               random.Parameter
	HalfLife        random.Parameter
	ProteinHalfLife random.Parameter
	DeltaActivation random.Parameter
	LowBasal        random.Parameter
	MediumBasal     random.Parameter

	// WeakActivation is the lowest level the maximally repressed state of a
	// gene may reach, capped at the gene's basal level.
	WeakActivation float64
	// ComplexProbability is the chance that a module with several inputs
	// binds as a complex.
	ComplexProbability float64
	ModelTranslation   bool
}

func DefaultKinetics() Kinetics {
	return Kinetics{
		K:                  random.Uniform{Min: 0.01, Max: 1},
		N:                  random.Gaussian{Min: 1, Max: 10, Mean: 2, Stdev: 2},
		HalfLife:           random.Gaussian{Min: 5, Max: 50, Mean: 10, Stdev: 10},
		ProteinHalfLife:    random.Gaussian{Min: 5, Max: 50, Mean: 10, Stdev: 10},
		DeltaActivation:    random.Gaussian{Min: 0.5, Max: 1, Mean: 0.9, Stdev: 0.2},
		LowBasal:           random.Gaussian{Min: 0.001, Max: 0.2, Mean: 0.05, Stdev: 0.05},
		MediumBasal:        random.Gaussian{Min: 0.2, Max: 0.5, Mean: 0.35, Stdev: 0.1},
		WeakActivation:     0.05,
		ComplexProbability: 0.5,
	}
}
