// Package random holds the seeded engine and the parameter distributions used
// to draw kinetic constants.
package random

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

var ErrInvalidRange = errors.New("invalid parameter range")

// maxRejections bounds the rejection loop of truncated distributions. Past
// this many attempts the draw falls back to a uniform value in the range.
const maxRejections = 10000

// New returns the engine every random draw of a run goes through. A zero seed
// seeds from the wall clock.
func New(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Parameter draws one value of a kinetic constant.
type Parameter interface {
	Draw(r *rand.Rand) float64
}

type Constant float64

func (c Constant) Draw(_ *rand.Rand) float64 {
	return float64(c)
}

// Uniform draws from [Min, Max).
type Uniform struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func NewUniform(min, max float64) (Uniform, error) {
	if !(min <= max) {
		return Uniform{}, fmt.Errorf("%w: uniform [%g, %g]", ErrInvalidRange, min, max)
	}
	return Uniform{Min: min, Max: max}, nil
}

func (u Uniform) Draw(r *rand.Rand) float64 {
	return u.Min + r.Float64()*(u.Max-u.Min)
}

// Gaussian is a normal distribution truncated to [Min, Max]. When Log is set
// Min, Max and Mean stay linear-scale values: the draw happens around
// log10(Mean) with Stdev in log10 units, and the result is 10^x.
type Gaussian struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Mean  float64 `yaml:"mean"`
	Stdev float64 `yaml:"stdev"`
	Log   bool    `yaml:"log"`
}

func NewGaussian(min, max, mean, stdev float64, log bool) (Gaussian, error) {
	if !(min <= max) || stdev < 0 {
		return Gaussian{}, fmt.Errorf("%w: gaussian [%g, %g] sd=%g", ErrInvalidRange, min, max, stdev)
	}
	if log && (min <= 0 || mean <= 0) {
		return Gaussian{}, fmt.Errorf("%w: log-gaussian needs min > 0 and mean > 0, got min=%g mean=%g", ErrInvalidRange, min, mean)
	}
	return Gaussian{Min: min, Max: max, Mean: mean, Stdev: stdev, Log: log}, nil
}

func (g Gaussian) Draw(r *rand.Rand) float64 {
	lo, hi, mean := g.Min, g.Max, g.Mean
	if g.Log {
		lo, hi, mean = math.Log10(lo), math.Log10(hi), math.Log10(mean)
	}

	x := lo + r.Float64()*(hi-lo)
	for i := 0; i < maxRejections; i++ {
		v := mean + g.Stdev*r.NormFloat64()
		if v >= lo && v <= hi {
			x = v
			break
		}
	}
	if g.Log {
		return math.Pow(10, x)
	}
	return x
}

// Bool draws a fair coin.
func Bool(r *rand.Rand) bool {
	return r.Intn(2) == 1
}
