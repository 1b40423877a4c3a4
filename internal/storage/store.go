// Package storage persists solve runs: JSON metadata next to a CSV dump of
// the optimized trajectory, one directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/nloc/internal/dynamo"
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
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Timestamp  time.Time `json:"timestamp"`
	Dt         float64   `json:"dt"`
	Horizon    int       `json:"horizon"`
	Iterations int       `json:"iterations"`
	Cost       float64   `json:"cost"`
	Status     string    `json:"status"`
}

// SaveRun writes meta.json and trajectory.csv under a run directory named
// by the metadata ID (generated from the timestamp when empty).
func (s *Store) SaveRun(meta RunMetadata, traj *dynamo.Trajectory) (string, error) {
	if meta.ID == "" {
		meta.ID = meta.Timestamp.Format("20060102-150405")
	}
	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), data, 0644); err != nil {
		return "", err
	}

	if err := s.writeTrajectory(filepath.Join(dir, "trajectory.csv"), meta.Dt, traj); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func (s *Store) writeTrajectory(path string, dt float64, traj *dynamo.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	nx := len(traj.States[0])
	nu := len(traj.Controls[0])
	header := []string{"t"}
	for i := 0; i < nx; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < nu; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for k, x := range traj.States {
		row := []string{strconv.FormatFloat(float64(k)*dt, 'g', -1, 64)}
		for _, v := range x {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		for i := 0; i < nu; i++ {
			if k < len(traj.Controls) {
				row = append(row, strconv.FormatFloat(traj.Controls[k][i], 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ListRuns returns the stored run metadata, newest first.
func (s *Store) ListRuns() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}
