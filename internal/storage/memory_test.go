package storage

import (
	"context"
	"testing"

	"grnsim/internal/model"
)

func sampleDataset(runID, name string) model.DatasetRecord {
	return model.DatasetRecord{
		RunID:     runID,
		Name:      name,
		Genes:     []string{"G1", "G2"},
		Rows:      2,
		RowLabels: []string{"G1", "G2"},
		MRNA:      []float64{0, 0.5, 0.25, 0},
		Converged: []bool{true, true},
		Summary:   model.GeneSummary{Mean: []float64{0.125, 0.25}, Stdev: []float64{0.125, 0.25}},
	}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	older := model.RunRecord{ID: "run-1", Network: "net", Seed: 7, CreatedAtUTC: "2026-01-01T00:00:00Z", Solver: "ode", DatasetNames: []string{"knockouts"}}
	newer := model.RunRecord{ID: "run-2", Network: "net", Seed: 8, CreatedAtUTC: "2026-02-01T00:00:00Z", Solver: "sde"}
	for _, run := range []model.RunRecord{older, newer} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	got, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if got.Seed != 7 || got.DatasetNames[0] != "knockouts" {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.SchemaVersion != CurrentSchemaVersion || got.CodecVersion != CurrentCodecVersion {
		t.Fatalf("run not stamped with current versions: %+v", got.VersionedRecord)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Fatalf("expected newest run first, got %+v", runs)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing run: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreDatasetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, name := range []string{"knockouts", "knockdowns"} {
		if err := store.SaveDataset(ctx, sampleDataset("run-1", name)); err != nil {
			t.Fatalf("save dataset %s: %v", name, err)
		}
	}
	if err := store.SaveDataset(ctx, sampleDataset("run-2", "wildtype")); err != nil {
		t.Fatalf("save dataset: %v", err)
	}

	got, ok, err := store.GetDataset(ctx, "run-1", "knockouts")
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted dataset")
	}
	if got.Rows != 2 || len(got.MRNA) != 4 || got.MRNA[1] != 0.5 {
		t.Fatalf("unexpected dataset: %+v", got)
	}

	list, err := store.ListDatasets(ctx, "run-1")
	if err != nil {
		t.Fatalf("list datasets: %v", err)
	}
	if len(list) != 2 || list[0].Name != "knockdowns" || list[1].Name != "knockouts" {
		t.Fatalf("unexpected datasets: %+v", list)
	}

	if _, ok, _ := store.GetDataset(ctx, "run-2", "knockouts"); ok {
		t.Fatal("dataset leaked across runs")
	}
}

func TestMemoryStoreDoesNotAliasCallerSlices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	ds := sampleDataset("run-1", "knockouts")
	if err := store.SaveDataset(ctx, ds); err != nil {
		t.Fatalf("save dataset: %v", err)
	}
	ds.MRNA[0] = 42

	got, _, err := store.GetDataset(ctx, "run-1", "knockouts")
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	if got.MRNA[0] != 0 {
		t.Fatalf("stored dataset changed with caller slice: %v", got.MRNA)
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "run-1"}); err == nil {
		t.Fatal("expected error saving to uninitialized store")
	}
}
