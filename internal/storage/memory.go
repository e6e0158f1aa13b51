package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"grnsim/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps records in maps. Records go through the codec on the
// way in and out so callers never share slices with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string][]byte
	datasets    map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string][]byte)
	s.datasets = make(map[string]map[string][]byte)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = payload
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	payload, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

// ListRuns returns every run, newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	payloads := make([][]byte, 0, len(s.runs))
	for _, p := range s.runs {
		payloads = append(payloads, p)
	}
	s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(payloads))
	for _, p := range payloads {
		run, err := DecodeRun(p)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveDataset(_ context.Context, dataset model.DatasetRecord) error {
	payload, err := EncodeDataset(dataset)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	byName, ok := s.datasets[dataset.RunID]
	if !ok {
		byName = make(map[string][]byte)
		s.datasets[dataset.RunID] = byName
	}
	byName[dataset.Name] = payload
	return nil
}

func (s *MemoryStore) GetDataset(_ context.Context, runID, name string) (model.DatasetRecord, bool, error) {
	s.mu.RLock()
	payload, ok := s.datasets[runID][name]
	s.mu.RUnlock()
	if !ok {
		return model.DatasetRecord{}, false, nil
	}
	dataset, err := DecodeDataset(payload)
	if err != nil {
		return model.DatasetRecord{}, false, err
	}
	return dataset, true, nil
}

// ListDatasets returns the datasets of a run sorted by name.
func (s *MemoryStore) ListDatasets(_ context.Context, runID string) ([]model.DatasetRecord, error) {
	s.mu.RLock()
	payloads := make([][]byte, 0, len(s.datasets[runID]))
	for _, p := range s.datasets[runID] {
		payloads = append(payloads, p)
	}
	s.mu.RUnlock()

	out := make([]model.DatasetRecord, 0, len(payloads))
	for _, p := range payloads {
		dataset, err := DecodeDataset(p)
		if err != nil {
			return nil, err
		}
		out = append(out, dataset)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}
