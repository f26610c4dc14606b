// Package storage keeps offline runs on disk: one directory per run holding
// metadata.json and samples.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Robot      string             `json:"robot"`
	Interface  string             `json:"interface"`
	Mode       string             `json:"mode"`
	Integrator string             `json:"integrator"`
	Hz         float64            `json:"hz"`
	Duration   float64            `json:"duration"`
	Cycles     int                `json:"cycles"`
	Rejected   int                `json:"rejected_targets"`
	Joints     []string           `json:"joints"`
	Timestamp  time.Time          `json:"timestamp"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Sample is one control cycle of a run. Orientations are w, x, y, z.
type Sample struct {
	Time           float64
	Position       [3]float64
	Orientation    [4]float64
	TargetPosition [3]float64
	Error          [6]float64
	Joints         []float64
}

var sampleHeader = []string{
	"time",
	"x", "y", "z", "qw", "qx", "qy", "qz",
	"target_x", "target_y", "target_z",
	"err_x", "err_y", "err_z", "err_rx", "err_ry", "err_rz",
}

// Save writes a run and returns its ID. An empty meta.ID is filled in.
func (s *Store) Save(meta RunMetadata, samples []Sample) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	header := append([]string(nil), sampleHeader...)
	for i := range meta.Joints {
		header = append(header, fmt.Sprintf("q%d", i))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, smp := range samples {
		if err := w.Write(smp.record()); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func (smp Sample) record() []string {
	row := make([]string, 0, len(sampleHeader)+len(smp.Joints))
	row = append(row, format(smp.Time))
	for _, v := range smp.Position {
		row = append(row, format(v))
	}
	for _, v := range smp.Orientation {
		row = append(row, format(v))
	}
	for _, v := range smp.TargetPosition {
		row = append(row, format(v))
	}
	for _, v := range smp.Error {
		row = append(row, format(v))
	}
	for _, v := range smp.Joints {
		row = append(row, format(v))
	}
	return row
}

func parseSample(record []string) (Sample, error) {
	if len(record) < len(sampleHeader) {
		return Sample{}, errors.Errorf("expected at least %d columns, got %d", len(sampleHeader), len(record))
	}
	vals := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Sample{}, errors.Wrapf(err, "column %d", i)
		}
		vals[i] = v
	}
	var smp Sample
	smp.Time = vals[0]
	copy(smp.Position[:], vals[1:4])
	copy(smp.Orientation[:], vals[4:8])
	copy(smp.TargetPosition[:], vals[8:11])
	copy(smp.Error[:], vals[11:17])
	smp.Joints = append([]float64(nil), vals[17:]...)
	return smp, nil
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Sample{}, nil
	}

	samples := make([]Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		smp, err := parseSample(record)
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", samplesFile, i+1)
		}
		samples = append(samples, smp)
	}
	return samples, nil
}
