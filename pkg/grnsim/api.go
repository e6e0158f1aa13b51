// Package grnsim is the programmatic entry point used by grnsimctl: it
// loads settings and topologies, generates benchmarks, and persists and
// lists their results.
package grnsim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"grnsim/internal/benchmark"
	"grnsim/internal/config"
	"grnsim/internal/dataio"
	"grnsim/internal/logging"
	"grnsim/internal/model"
	"grnsim/internal/observability"
	"grnsim/internal/storage"
)

const (
	defaultOutDir = "benchmarks"
	defaultDBPath = "grnsim.db"
)

type Options struct {
	StoreKind string
	DBPath    string
	OutDir    string
	// Logger overrides the logger built from the run settings.
	Logger *zap.Logger
	// Registerer receives the solver metrics; a private registry is used
	// when nil.
	Registerer prometheus.Registerer
}

type Client struct {
	store   storage.Store
	metrics *observability.SolverCollector
	logger  *zap.Logger
	outDir  string

	mu          sync.Mutex
	initialized bool
}

type GenerateRequest struct {
	// NetworkPath is a topology TSV file; Network is used when it is empty.
	NetworkPath string
	Network     *model.Network
	// SettingsPath is a YAML settings file; Settings, then the defaults,
	// are used when it is empty.
	SettingsPath string
	Settings     *config.Settings
	// Seed and Workers override the settings when non-zero.
	Seed    int64
	Workers int
	// MetricsPath receives the solver metrics in the text exposition
	// format when set.
	MetricsPath string
}

type DatasetSummary struct {
	Name      string
	Kind      string
	Rows      int
	Converged int
}

type GenerateSummary struct {
	RunID        string
	Network      string
	Seed         int64
	ArtifactsDir string
	Datasets     []DatasetSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Network      string
	Seed         int64
	Solver       string
	Genes        int
	Datasets     int
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type RunDetail struct {
	Run          model.RunRecord
	ArtifactsDir string
	// Datasets come from the store, or from the run's TSV artifacts when the
	// store no longer holds them (memory store in a later process). Records
	// read from artifacts carry no row labels or convergence flags.
	Datasets []model.DatasetRecord
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = defaultOutDir
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	metrics, err := observability.NewSolverCollector(reg)
	if err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}

	return &Client{
		store:   store,
		metrics: metrics,
		logger:  opts.Logger,
		outDir:  outDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Metrics returns the collector shared by every benchmark of the client.
func (c *Client) Metrics() *observability.SolverCollector {
	return c.metrics
}

// Generate runs one benchmark, stores its run and dataset records, and
// writes its artifacts under the output directory.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateSummary, error) {
	settings, err := resolveSettings(req)
	if err != nil {
		return GenerateSummary{}, err
	}
	topo, err := resolveTopology(req)
	if err != nil {
		return GenerateSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return GenerateSummary{}, err
	}

	logger := c.logger
	if logger == nil {
		logger, err = logging.New(logging.Config{Level: settings.Log.Level, Format: settings.Log.Format})
		if err != nil {
			return GenerateSummary{}, err
		}
		defer func() { _ = logger.Sync() }()
	}

	gen := &benchmark.Generator{Settings: settings, Logger: logger, Metrics: c.metrics}
	res, err := gen.Generate(ctx, topo)
	if err != nil {
		return GenerateSummary{}, err
	}

	if err := c.persist(ctx, res); err != nil {
		return GenerateSummary{}, err
	}
	runDir, err := dataio.WriteRunArtifacts(c.outDir, dataio.RunArtifacts{Result: res, Settings: settings, Topology: topo})
	if err != nil {
		return GenerateSummary{}, err
	}
	if err := dataio.AppendRunIndex(c.outDir, dataio.IndexEntry(res)); err != nil {
		return GenerateSummary{}, err
	}
	if req.MetricsPath != "" {
		if err := c.metrics.WriteTextfile(req.MetricsPath); err != nil {
			return GenerateSummary{}, fmt.Errorf("write metrics: %w", err)
		}
	}
	logger.Info("benchmark stored", zap.String("run_id", res.RunID), zap.String("dir", runDir))

	summary := GenerateSummary{
		RunID:        res.RunID,
		Network:      res.Network,
		Seed:         res.Seed,
		ArtifactsDir: filepath.Clean(runDir),
		Datasets:     make([]DatasetSummary, 0, len(res.Datasets)),
	}
	for _, ds := range res.Datasets {
		rows, _ := ds.MRNA.Dims()
		converged := 0
		for _, ok := range ds.Converged {
			if ok {
				converged++
			}
		}
		summary.Datasets = append(summary.Datasets, DatasetSummary{Name: ds.Name, Kind: ds.Kind, Rows: rows, Converged: converged})
	}
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := dataio.ListRunIndex(c.outDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Network:      e.Network,
			Seed:         e.Seed,
			Solver:       e.Solver,
			Genes:        e.Genes,
			Datasets:     e.Datasets,
		})
	}
	return out, nil
}

// Show returns a run from the store, falling back to the run directory for
// runs the store does not hold.
func (c *Client) Show(ctx context.Context, req ShowRequest) (RunDetail, error) {
	if req.RunID != "" && req.Latest {
		return RunDetail{}, errors.New("use either run id or latest")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := dataio.ListRunIndex(c.outDir)
		if err != nil {
			return RunDetail{}, err
		}
		if len(entries) == 0 {
			return RunDetail{}, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return RunDetail{}, errors.New("show requires run id or latest")
	}

	if err := c.ensureStore(ctx); err != nil {
		return RunDetail{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		run, ok, err = dataio.ReadRunRecord(c.outDir, runID)
		if err != nil {
			return RunDetail{}, err
		}
		if !ok {
			return RunDetail{}, fmt.Errorf("run not found: %s", runID)
		}
	}
	datasets, err := c.store.ListDatasets(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if len(datasets) == 0 {
		datasets, err = c.readDatasets(runID, run.DatasetNames)
		if err != nil {
			return RunDetail{}, err
		}
	}
	return RunDetail{
		Run:          run,
		ArtifactsDir: filepath.Join(c.outDir, runID),
		Datasets:     datasets,
	}, nil
}

// readDatasets rebuilds dataset records from the run's TSV artifacts and
// recomputes their per-gene summaries. Missing files are skipped.
func (c *Client) readDatasets(runID string, names []string) ([]model.DatasetRecord, error) {
	var out []model.DatasetRecord
	for _, name := range names {
		rec, ok, err := dataio.ReadDataset(c.outDir, runID, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ds, err := benchmark.DatasetFromRecord(rec)
		if err != nil {
			return nil, err
		}
		rec, err = ds.Record(runID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) persist(ctx context.Context, res *benchmark.Result) error {
	if err := c.store.SaveRun(ctx, res.RunRecord()); err != nil {
		return fmt.Errorf("save run %s: %w", res.RunID, err)
	}
	for _, ds := range res.Datasets {
		rec, err := ds.Record(res.RunID)
		if err != nil {
			return err
		}
		if err := c.store.SaveDataset(ctx, rec); err != nil {
			return fmt.Errorf("save dataset %s: %w", ds.Name, err)
		}
	}
	return nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func resolveSettings(req GenerateRequest) (config.Settings, error) {
	var (
		settings config.Settings
		err      error
	)
	switch {
	case req.SettingsPath != "":
		settings, err = config.Load(req.SettingsPath)
		if err != nil {
			return config.Settings{}, err
		}
	case req.Settings != nil:
		settings = *req.Settings
	default:
		settings = config.Default()
	}
	if req.Seed != 0 {
		settings.Seed = req.Seed
	}
	if req.Workers > 0 {
		settings.Workers = req.Workers
	}
	return settings, settings.Validate()
}

func resolveTopology(req GenerateRequest) (*model.Network, error) {
	if req.NetworkPath == "" {
		if req.Network == nil {
			return nil, errors.New("generate requires a network")
		}
		return req.Network, nil
	}
	f, err := os.Open(req.NetworkPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Base(req.NetworkPath)
	return dataio.ReadTopology(f, strings.TrimSuffix(base, filepath.Ext(base)))
}

// LoadSettings returns the defaults overlaid with the YAML file at path,
// or the defaults alone when path is empty.
func LoadSettings(path string) (config.Settings, error) {
	if path == "" {
		s := config.Default()
		return s, s.Validate()
	}
	return config.Load(path)
}
