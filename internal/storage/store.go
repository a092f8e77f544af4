package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/sim"
)

const (
	metadataFile    = "metadata.json"
	diagnosticsFile = "diagnostics.csv"
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

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Timestamp      time.Time          `json:"timestamp"`
	NumBodies      int                `json:"num_bodies"`
	StepsTaken     int                `json:"steps_taken"`
	ElapsedMs      float64            `json:"elapsed_ms"`
	MsPerStep      float64            `json:"ms_per_step"`
	SnapshotFormat string             `json:"snapshot_format,omitempty"`
	Config         *config.Config     `json:"config"`
	Metrics        map[string]float64 `json:"metrics"`
	Error          string             `json:"error,omitempty"`
}

// Create makes a new run directory and returns its ID.
func (s *Store) Create(name string) (string, error) {
	if name == "" {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	if err := os.MkdirAll(s.Dir(runID), 0755); err != nil {
		return "", err
	}
	return runID, nil
}

// Save writes metadata.json for a finished (or failed) run.
func (s *Store) Save(runID string, cfg *config.Config, numBodies int, result *sim.Result, runErr error) (*RunMetadata, error) {
	meta := &RunMetadata{
		ID:        runID,
		Name:      cfg.Name,
		Timestamp: time.Now(),
		NumBodies: numBodies,
		Config:    cfg,
		Metrics:   map[string]float64{},
	}
	if cfg.Snapshot.Every > 0 {
		meta.SnapshotFormat = cfg.Snapshot.Format
	}
	if result != nil {
		meta.StepsTaken = result.StepsTaken
		meta.ElapsedMs = float64(result.Elapsed.Microseconds()) / 1000
		meta.MsPerStep = result.MsPerStep()
		for k, v := range result.Metrics {
			meta.Metrics[k] = v
		}
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	metaFile, err := os.Create(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return nil, err
	}
	return meta, nil
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

type Diagnostic struct {
	Step     int
	Time     float64
	Energy   float64
	Momentum float64
}

var diagnosticsHeader = []string{"step", "time", "energy", "momentum"}

func (s *Store) LoadDiagnostics(runID string) ([]Diagnostic, error) {
	file, err := os.Open(filepath.Join(s.Dir(runID), diagnosticsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(diagnosticsHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Diagnostic{}, nil
	}

	out := make([]Diagnostic, 0, len(records)-1)
	for _, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		d := Diagnostic{Step: step}
		fields := []*float64{&d.Time, &d.Energy, &d.Momentum}
		ok := true
		for i, f := range fields {
			if *f, err = strconv.ParseFloat(record[i+1], 64); err != nil {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// ErrNoFrame is returned by LoadFrame when the requested step was not
// snapshotted.
var ErrNoFrame = errors.New("storage: no snapshot for step")

// LoadFrame reads the snapshot taken at step. A negative step selects the
// last snapshot.
func (s *Store) LoadFrame(runID string, step int) (*Frame, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	switch meta.SnapshotFormat {
	case "csv":
		return loadCSVFrame(filepath.Join(s.Dir(runID), csvSnapshotFile), step)
	case "sqlite":
		return loadSQLiteFrame(filepath.Join(s.Dir(runID), sqliteSnapshotFile), step)
	}
	return nil, fmt.Errorf("run %s has no snapshots", runID)
}
