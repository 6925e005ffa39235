// Package report writes a TOML summary of a completed run next to the
// checkpoint database, so operators can inspect outcomes without opening
// the database.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Summary describes one pipeline run.
type Summary struct {
	StartedAt        time.Time `toml:"started_at"`
	FinishedAt       time.Time `toml:"finished_at"`
	RegionsTotal     int       `toml:"regions_total"`
	RegionsProcessed int       `toml:"regions_processed"`
	RegionsResumed   int       `toml:"regions_resumed"`
	LakeRows         int       `toml:"lake_rows"`
	Fragments        int       `toml:"fragments"`
	GlobalComponents int64     `toml:"global_components"`
	Networks         int       `toml:"networks"`
}

// Save writes the summary to the given path, creating parent directories
// as needed.
func Save(path string, s *Summary) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: creating directory %s: %w", dir, err)
	}

	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("report: marshaling summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: writing %s: %w", path, err)
	}
	return nil
}

// Load reads a previously written summary. A missing file returns a zero
// Summary and no error.
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Summary{}, nil
		}
		return nil, fmt.Errorf("report: reading %s: %w", path, err)
	}
	var s Summary
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("report: parsing %s: %w", path, err)
	}
	return &s, nil
}
