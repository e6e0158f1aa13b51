// Package noise adds experimental noise to expression matrices and scales
// datasets for output.
package noise

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"grnsim/internal/model"
)

var ErrInvalidModel = errors.New("invalid noise model")

// Model combines additive Gaussian and multiplicative log-normal noise. A
// zero standard deviation disables the corresponding term.
type Model struct {
	NormalStdev    float64 `yaml:"normal_stdev" validate:"gte=0"`
	LogNormalStdev float64 `yaml:"lognormal_stdev" validate:"gte=0"`
}

func (m Model) Enabled() bool {
	return m.NormalStdev > 0 || m.LogNormalStdev > 0
}

func (m Model) Validate() error {
	if m.NormalStdev < 0 || m.LogNormalStdev < 0 {
		return fmt.Errorf("%w: normal=%g lognormal=%g", ErrInvalidModel, m.NormalStdev, m.LogNormalStdev)
	}
	return nil
}

// Apply perturbs every entry of data in place. The log-normal term multiplies
// by exp(N(0, LogNormalStdev)); the normal term then adds N(0, NormalStdev).
// Results are clamped at zero.
func (m Model) Apply(r *rand.Rand, data *mat.Dense) {
	if data == nil || !m.Enabled() {
		return
	}
	data.Apply(func(_, _ int, v float64) float64 {
		if m.LogNormalStdev > 0 {
			v *= math.Exp(m.LogNormalStdev * r.NormFloat64())
		}
		if m.NormalStdev > 0 {
			v += m.NormalStdev * r.NormFloat64()
		}
		if v < 0 {
			return 0
		}
		return v
	}, data)
}

// Normalize divides every matrix by the largest value found across all of
// them and returns that value. Nil matrices are skipped; when the maximum is
// not positive nothing is scaled.
func Normalize(data ...*mat.Dense) (float64, error) {
	var all stats.Float64Data
	for _, m := range data {
		if m == nil {
			continue
		}
		all = append(all, m.RawMatrix().Data...)
	}
	if len(all) == 0 {
		return 0, nil
	}
	peak, err := stats.Max(all)
	if err != nil {
		return 0, err
	}
	if !(peak > 0) {
		return peak, nil
	}
	for _, m := range data {
		if m != nil {
			m.Apply(func(_, _ int, v float64) float64 { return v / peak }, m)
		}
	}
	return peak, nil
}

// Summarize computes the mean and population standard deviation of every
// column of data.
func Summarize(data *mat.Dense) (model.GeneSummary, error) {
	rows, cols := data.Dims()
	summary := model.GeneSummary{Mean: make([]float64, cols), Stdev: make([]float64, cols)}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		mean, err := stats.Mean(col)
		if err != nil {
			return summary, fmt.Errorf("gene %d: %w", j, err)
		}
		sd, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return summary, fmt.Errorf("gene %d: %w", j, err)
		}
		summary.Mean[j] = mean
		summary.Stdev[j] = sd
	}
	return summary, nil
}
