package benchmark

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"grnsim/internal/model"
	"grnsim/internal/noise"
)

// Record flattens the dataset for storage and attaches per-gene summaries
// of the mRNA matrix.
func (d Dataset) Record(runID string) (model.DatasetRecord, error) {
	summary, err := noise.Summarize(d.MRNA)
	if err != nil {
		return model.DatasetRecord{}, fmt.Errorf("summarize %s: %w", d.Name, err)
	}
	rows, _ := d.MRNA.Dims()
	return model.DatasetRecord{
		RunID:     runID,
		Name:      d.Name,
		Genes:     append([]string(nil), d.Genes...),
		Rows:      rows,
		RowLabels: append([]string(nil), d.RowLabels...),
		MRNA:      flatten(d.MRNA),
		Protein:   flatten(d.Protein),
		Times:     append([]float64(nil), d.Times...),
		Converged: append([]bool(nil), d.Converged...),
		Summary:   summary,
	}, nil
}

// DatasetFromRecord rebuilds the matrices of a stored dataset.
func DatasetFromRecord(rec model.DatasetRecord) (Dataset, error) {
	n := len(rec.Genes)
	if n == 0 || rec.Rows <= 0 || len(rec.MRNA) != rec.Rows*n {
		return Dataset{}, fmt.Errorf("dataset %s: %d values for %d rows of %d genes", rec.Name, len(rec.MRNA), rec.Rows, n)
	}
	ds := Dataset{
		Name:      rec.Name,
		Genes:     rec.Genes,
		RowLabels: rec.RowLabels,
		MRNA:      mat.NewDense(rec.Rows, n, append([]float64(nil), rec.MRNA...)),
		Times:     rec.Times,
		Converged: rec.Converged,
	}
	if len(rec.Protein) > 0 {
		if len(rec.Protein) != len(rec.MRNA) {
			return Dataset{}, fmt.Errorf("dataset %s: protein has %d values, mrna %d", rec.Name, len(rec.Protein), len(rec.MRNA))
		}
		ds.Protein = mat.NewDense(rec.Rows, n, append([]float64(nil), rec.Protein...))
	}
	return ds, nil
}

// RunRecord describes the run for storage.
func (r *Result) RunRecord() model.RunRecord {
	names := make([]string, len(r.Datasets))
	for i, ds := range r.Datasets {
		names[i] = ds.Name
	}
	return model.RunRecord{
		ID:           r.RunID,
		Network:      r.Network,
		Seed:         r.Seed,
		CreatedAtUTC: r.CreatedAt.UTC().Format(time.RFC3339),
		Solver:       r.Solver,
		Translation:  r.Translation,
		DatasetNames: names,
	}
}

func flatten(m *mat.Dense) []float64 {
	if m == nil {
		return nil
	}
	rows, cols := m.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}
