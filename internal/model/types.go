package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one benchmark generation run.
type RunRecord struct {
	VersionedRecord
	ID           string   `json:"id"`
	Network      string   `json:"network"`
	Seed         int64    `json:"seed"`
	CreatedAtUTC string   `json:"created_at_utc"`
	Solver       string   `json:"solver"`
	Translation  bool     `json:"translation"`
	DatasetNames []string `json:"dataset_names"`
}

// DatasetRecord is one expression dataset of a run, flattened row-major.
type DatasetRecord struct {
	VersionedRecord
	RunID     string      `json:"run_id"`
	Name      string      `json:"name"`
	Genes     []string    `json:"genes"`
	Rows      int         `json:"rows"`
	RowLabels []string    `json:"row_labels"`
	MRNA      []float64   `json:"mrna"`
	Protein   []float64   `json:"protein,omitempty"`
	Times     []float64   `json:"times,omitempty"`
	Converged []bool      `json:"converged,omitempty"`
	Summary   GeneSummary `json:"summary"`
}

// GeneSummary holds per-gene statistics over all rows of a dataset.
type GeneSummary struct {
	Mean  []float64 `json:"mean"`
	Stdev []float64 `json:"stdev"`
}
