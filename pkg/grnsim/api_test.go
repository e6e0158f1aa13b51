package grnsim

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"grnsim/internal/config"
	"grnsim/internal/model"
)

const cascadeTopology = "G1\tG2\t+\nG2\tG3\t-\nG1\tG3\t+\n"

func smallSettings() config.Settings {
	s := config.Default()
	s.Seed = 5
	s.Workers = 2
	s.Integration.MaxTSteadyState = 200
	s.Experiments.DualKnockouts = 1
	s.Experiments.Multifactorial = 2
	s.Experiments.TimeSeries = 1
	s.Experiments.TimeSeriesMaxT = 50
	return s
}

func newTestClient(t *testing.T, outDir string) *Client {
	t.Helper()
	client, err := New(Options{StoreKind: "memory", OutDir: outDir, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientGenerateRunsAndShow(t *testing.T) {
	base := t.TempDir()
	outDir := filepath.Join(base, "benchmarks")
	networkPath := filepath.Join(base, "cascade.tsv")
	if err := os.WriteFile(networkPath, []byte(cascadeTopology), 0o644); err != nil {
		t.Fatalf("write topology: %v", err)
	}
	metricsPath := filepath.Join(base, "metrics.prom")

	client := newTestClient(t, outDir)
	settings := smallSettings()
	summary, err := client.Generate(context.Background(), GenerateRequest{
		NetworkPath: networkPath,
		Settings:    &settings,
		MetricsPath: metricsPath,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.RunID == "" || summary.Network != "cascade" || summary.Seed != 5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Datasets) != 6 {
		t.Fatalf("expected 6 datasets, got %+v", summary.Datasets)
	}
	for _, ds := range summary.Datasets {
		if ds.Name == "knockouts" && ds.Rows != 3 {
			t.Fatalf("knockouts rows: got=%d want=3", ds.Rows)
		}
	}

	for _, file := range []string{"run.json", "knockouts.tsv", "timeseries.tsv", "settings.yaml"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}
	raw, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), "grnsim_integrations_total") {
		t.Fatalf("metrics file missing integrations:\n%s", raw)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Genes != 3 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	detail, err := client.Show(context.Background(), ShowRequest{Latest: true})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if detail.Run.ID != summary.RunID || len(detail.Datasets) != 6 {
		t.Fatalf("unexpected detail: run=%+v datasets=%d", detail.Run, len(detail.Datasets))
	}
}

func TestClientShowFallsBackToArtifacts(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "benchmarks")
	first := newTestClient(t, outDir)

	settings := smallSettings()
	settings.Experiments.DualKnockouts = 0
	settings.Experiments.Multifactorial = 0
	settings.Experiments.TimeSeries = 0
	summary, err := first.Generate(context.Background(), GenerateRequest{
		Network:  mustTopology(t),
		Settings: &settings,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	second := newTestClient(t, outDir)
	detail, err := second.Show(context.Background(), ShowRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if detail.Run.ID != summary.RunID || len(detail.Run.DatasetNames) != 3 {
		t.Fatalf("unexpected detail: %+v", detail.Run)
	}

	stored, err := first.Show(context.Background(), ShowRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("show stored: %v", err)
	}
	if len(detail.Datasets) != len(stored.Datasets) || len(detail.Datasets) != 3 {
		t.Fatalf("datasets: artifacts=%d store=%d", len(detail.Datasets), len(stored.Datasets))
	}
	want := map[string]model.DatasetRecord{}
	for _, ds := range stored.Datasets {
		want[ds.Name] = ds
	}
	for _, got := range detail.Datasets {
		ref, ok := want[got.Name]
		if !ok {
			t.Fatalf("unexpected dataset %s", got.Name)
		}
		if got.Rows != ref.Rows || len(got.Genes) != len(ref.Genes) || len(got.Summary.Mean) != len(ref.Genes) {
			t.Fatalf("dataset %s: rows=%d genes=%v summary=%v", got.Name, got.Rows, got.Genes, got.Summary)
		}
		for i, v := range got.MRNA {
			if math.Abs(v-ref.MRNA[i]) > 1e-7 {
				t.Fatalf("dataset %s value %d: got=%v want=%v", got.Name, i, v, ref.MRNA[i])
			}
		}
	}
}

func TestClientRequestValidation(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "benchmarks"))
	ctx := context.Background()

	if _, err := client.Generate(ctx, GenerateRequest{}); err == nil {
		t.Fatal("expected error without a network")
	}
	bad := smallSettings()
	bad.Solver = "euler"
	if _, err := client.Generate(ctx, GenerateRequest{Network: mustTopology(t), Settings: &bad}); err == nil {
		t.Fatal("expected error for invalid solver")
	}
	if _, err := client.Show(ctx, ShowRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected error for run id with latest")
	}
	if _, err := client.Show(ctx, ShowRequest{Latest: true}); err == nil {
		t.Fatal("expected error with no runs")
	}
	if _, err := client.Show(ctx, ShowRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestResolveSettingsOverrides(t *testing.T) {
	settings, err := resolveSettings(GenerateRequest{Seed: 9, Workers: 3})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if settings.Seed != 9 || settings.Workers != 3 {
		t.Fatalf("overrides not applied: seed=%d workers=%d", settings.Seed, settings.Workers)
	}

	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("solver: sde\nworkers: 2\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	settings, err = LoadSettings(path)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Solver != "sde" || settings.Workers != 2 {
		t.Fatalf("unexpected settings: solver=%s workers=%d", settings.Solver, settings.Workers)
	}
}

func mustTopology(t *testing.T) *model.Network {
	t.Helper()
	topo := model.NewNetwork("cascade")
	for _, label := range []string{"G1", "G2", "G3"} {
		topo.EnsureNode(label)
	}
	if err := topo.AddEdge("G1", "G2", model.EdgeEnhancer); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	if err := topo.AddEdge("G2", "G3", model.EdgeInhibitor); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	topo.MarkRegulators()
	return topo
}
