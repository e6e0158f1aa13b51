package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grnsim/internal/storage"
	"grnsim/pkg/grnsim"
)

const (
	defaultOutDir = "benchmarks"
	defaultDBPath = "grnsim.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "generate":
		return runGenerate(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	networkPath := fs.String("network", "", "topology TSV file (source, target, sign)")
	configPath := fs.String("config", "", "settings YAML file")
	outDir := fs.String("out", defaultOutDir, "directory receiving run artifacts")
	metricsOut := fs.String("metrics-out", "", "write solver metrics to this file")
	seed := fs.Int64("seed", 0, "override the settings seed")
	workers := fs.Int("workers", 0, "override the settings worker count")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *networkPath == "" {
		return errors.New("generate requires --network")
	}

	settings, err := grnsim.LoadSettings(*configPath)
	if err != nil {
		return err
	}
	// The settings file chooses the store unless a flag says otherwise.
	if *configPath != "" && !flagSet(fs, "store") {
		*storeKind = settings.Store.Kind
		if settings.Store.Path != "" && !flagSet(fs, "db-path") {
			*dbPath = settings.Store.Path
		}
	}

	client, err := grnsim.New(grnsim.Options{StoreKind: *storeKind, DBPath: *dbPath, OutDir: *outDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Generate(ctx, grnsim.GenerateRequest{
		NetworkPath: *networkPath,
		Settings:    &settings,
		Seed:        *seed,
		Workers:     *workers,
		MetricsPath: *metricsOut,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Printf("run_id=%s network=%s seed=%d dir=%s\n", summary.RunID, summary.Network, summary.Seed, summary.ArtifactsDir)
	for _, ds := range summary.Datasets {
		fmt.Printf("dataset=%s kind=%s rows=%d converged=%d\n", ds.Name, ds.Kind, ds.Rows, ds.Converged)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	outDir := fs.String("out", defaultOutDir, "directory holding run artifacts")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := grnsim.New(grnsim.Options{StoreKind: "memory", OutDir: *outDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, grnsim.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Printf(
			"run_id=%s created_at=%s network=%s genes=%d datasets=%d seed=%d solver=%s\n",
			item.RunID,
			item.CreatedAtUTC,
			item.Network,
			item.Genes,
			item.Datasets,
			item.Seed,
			item.Solver,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to show")
	latest := fs.Bool("latest", false, "show the most recent run")
	outDir := fs.String("out", defaultOutDir, "directory holding run artifacts")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the run as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := grnsim.New(grnsim.Options{StoreKind: *storeKind, DBPath: *dbPath, OutDir: *outDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	detail, err := client.Show(ctx, grnsim.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(detail)
	}

	run := detail.Run
	fmt.Printf("run_id=%s network=%s seed=%d solver=%s translation=%t created_at=%s dir=%s\n",
		run.ID, run.Network, run.Seed, run.Solver, run.Translation, run.CreatedAtUTC, detail.ArtifactsDir)
	if len(detail.Datasets) == 0 {
		for _, name := range run.DatasetNames {
			fmt.Printf("dataset=%s\n", name)
		}
		return nil
	}
	for _, ds := range detail.Datasets {
		fmt.Printf("dataset=%s rows=%d genes=%d\n", ds.Name, ds.Rows, len(ds.Genes))
	}
	return nil
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func writeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: grnsimctl <generate|runs|show> [flags]", msg)
}
