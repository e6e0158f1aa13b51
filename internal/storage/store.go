package storage

import (
	"context"

	"grnsim/internal/model"
)

// Store defines persistence operations for generated benchmarks.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveDataset(ctx context.Context, dataset model.DatasetRecord) error
	GetDataset(ctx context.Context, runID, name string) (model.DatasetRecord, bool, error)
	ListDatasets(ctx context.Context, runID string) ([]model.DatasetRecord, error)
}
