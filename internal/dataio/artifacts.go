package dataio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"grnsim/internal/benchmark"
	"grnsim/internal/config"
	"grnsim/internal/model"
)

const (
	runIndexFile  = "run_index.json"
	runFile       = "run.json"
	paramsFile    = "params.json"
	settingsFile  = "settings.yaml"
	topologyFile  = "topology.tsv"
	proteinSuffix = "_proteins"
	pertSuffix    = "_perturbations"
)

// RunArtifacts is everything written to disk for one generated benchmark.
type RunArtifacts struct {
	Result   *benchmark.Result
	Settings config.Settings
	Topology *model.Network
}

// RunIndexEntry is one line of the run index kept next to the run
// directories.
type RunIndexEntry struct {
	RunID        string `json:"run_id"`
	Network      string `json:"network"`
	Seed         int64  `json:"seed"`
	Solver       string `json:"solver"`
	Genes        int    `json:"genes"`
	Datasets     int    `json:"datasets"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// WriteRunArtifacts writes a run directory under baseDir named by the run
// ID and returns its path. Every dataset gets a mRNA file, a protein file
// when translation is modelled, and a perturbation file when it was
// perturbed. The settings are written with the seed actually used so the
// run can be reproduced.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	res := artifacts.Result
	if res == nil || res.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, res.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), res.RunRecord()); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, paramsFile), res.Params); err != nil {
		return "", err
	}
	settings := artifacts.Settings
	settings.Seed = res.Seed
	if err := writeYAML(filepath.Join(runDir, settingsFile), settings); err != nil {
		return "", err
	}
	if artifacts.Topology != nil {
		if err := writeFile(filepath.Join(runDir, topologyFile), func(buf *bytes.Buffer) error {
			return WriteTopology(buf, artifacts.Topology)
		}); err != nil {
			return "", err
		}
	}

	for _, ds := range res.Datasets {
		if err := writeDataset(runDir, ds); err != nil {
			return "", fmt.Errorf("write dataset %s: %w", ds.Name, err)
		}
	}
	return runDir, nil
}

func writeDataset(runDir string, ds benchmark.Dataset) error {
	if err := writeFile(filepath.Join(runDir, ds.Name+".tsv"), func(buf *bytes.Buffer) error {
		return WriteDense(buf, ds.Genes, ds.MRNA, ds.Times)
	}); err != nil {
		return err
	}
	if ds.Protein != nil {
		if err := writeFile(filepath.Join(runDir, ds.Name+proteinSuffix+".tsv"), func(buf *bytes.Buffer) error {
			return WriteDense(buf, ds.Genes, ds.Protein, ds.Times)
		}); err != nil {
			return err
		}
	}
	if ds.Perturbation != nil {
		if err := writeFile(filepath.Join(runDir, ds.Name+pertSuffix+".tsv"), func(buf *bytes.Buffer) error {
			return WriteDense(buf, ds.Genes, ds.Perturbation, nil)
		}); err != nil {
			return err
		}
	}
	return nil
}

// ReadRunRecord reads the run description of a run directory.
func ReadRunRecord(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, true, nil
}

// ReadDataset rebuilds a dataset record from the TSV files of a run
// directory. Row labels and convergence flags are not part of those files
// and stay empty.
func ReadDataset(baseDir, runID, name string) (model.DatasetRecord, bool, error) {
	runDir := filepath.Join(baseDir, runID)
	genes, mrna, times, rows, ok, err := readDenseFile(filepath.Join(runDir, name+".tsv"))
	if err != nil || !ok {
		return model.DatasetRecord{}, ok, err
	}
	rec := model.DatasetRecord{
		RunID: runID,
		Name:  name,
		Genes: genes,
		Rows:  rows,
		MRNA:  mrna,
		Times: times,
	}

	proteinGenes, protein, _, proteinRows, ok, err := readDenseFile(filepath.Join(runDir, name+proteinSuffix+".tsv"))
	if err != nil {
		return model.DatasetRecord{}, false, err
	}
	if ok {
		if proteinRows != rows || len(proteinGenes) != len(genes) {
			return model.DatasetRecord{}, false, fmt.Errorf("%w: %s proteins are %dx%d, mrna %dx%d",
				ErrShape, name, proteinRows, len(proteinGenes), rows, len(genes))
		}
		rec.Protein = protein
	}
	return rec, true, nil
}

// readDenseFile reads a WriteDense file into a row-major slice, splitting off
// the leading time column when present.
func readDenseFile(path string) (genes []string, values, times []float64, rows int, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil, 0, false, nil
		}
		return nil, nil, nil, 0, false, err
	}
	defer f.Close()

	header, matrix, err := ReadMatrix(f)
	if err != nil {
		return nil, nil, nil, 0, false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	timed := len(header) > 0 && header[0] == timeColumn
	genes = header
	if timed {
		genes = header[1:]
	}
	for _, row := range matrix {
		if timed {
			times = append(times, row[0])
			row = row[1:]
		}
		values = append(values, row...)
	}
	return append([]string(nil), genes...), values, times, len(matrix), true, nil
}

// IndexEntry summarizes a result for the run index.
func IndexEntry(res *benchmark.Result) RunIndexEntry {
	genes := 0
	if len(res.Datasets) > 0 {
		genes = len(res.Datasets[0].Genes)
	}
	return RunIndexEntry{
		RunID:        res.RunID,
		Network:      res.Network,
		Seed:         res.Seed,
		Solver:       res.Solver,
		Genes:        genes,
		Datasets:     len(res.Datasets),
		CreatedAtUTC: res.RunRecord().CreatedAtUTC,
	}
}

// AppendRunIndex adds entry to the index, replacing an entry with the same
// run ID.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func writeYAML(path string, value any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeFile(path string, fill func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := fill(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
