package storage

import (
	"encoding/json"
	"errors"

	"grnsim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

// EncodeRun stamps the current versions onto the record before marshalling.
func EncodeRun(r model.RunRecord) ([]byte, error) {
	r.VersionedRecord = currentVersion()
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

// EncodeDataset stamps the current versions onto the record before
// marshalling.
func EncodeDataset(d model.DatasetRecord) ([]byte, error) {
	d.VersionedRecord = currentVersion()
	return json.Marshal(d)
}

func DecodeDataset(data []byte) (model.DatasetRecord, error) {
	var dataset model.DatasetRecord
	if err := json.Unmarshal(data, &dataset); err != nil {
		return model.DatasetRecord{}, err
	}
	if err := checkVersion(dataset.VersionedRecord); err != nil {
		return model.DatasetRecord{}, err
	}
	return dataset, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
