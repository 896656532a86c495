package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunSpec names one input file of a batch and the run id it is loaded under.
type RunSpec struct {
	ID   int    `yaml:"idrun"`
	Path string `yaml:"path"`
}

// Manifest lists the runs of a batch, in processing order. The first run
// is the one the salary report is taken from.
//
//	runs:
//	  - idrun: 1
//	    path: Flusso.csv
//	  - idrun: 2
//	    path: Flusso2.csv
type Manifest struct {
	Runs []RunSpec `yaml:"runs"`
}

// DefaultManifest is the two-file batch used when no manifest is given.
func DefaultManifest() *Manifest {
	return &Manifest{Runs: []RunSpec{
		{ID: 1, Path: "Flusso.csv"},
		{ID: 2, Path: "Flusso2.csv"},
	}}
}

// ManifestFromPaths numbers paths as runs 1..n.
func ManifestFromPaths(paths []string) *Manifest {
	m := &Manifest{Runs: make([]RunSpec, len(paths))}
	for i, p := range paths {
		m.Runs[i] = RunSpec{ID: i + 1, Path: p}
	}
	return m
}

// LoadManifest reads a YAML manifest. Relative paths are resolved against
// the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range m.Runs {
		if !filepath.IsAbs(m.Runs[i].Path) {
			m.Runs[i].Path = filepath.Join(dir, m.Runs[i].Path)
		}
	}
	return m, nil
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the manifest names at least one run, that run ids
// are positive and unique, and that every run has a path.
func (m *Manifest) Validate() error {
	var errs []string

	if len(m.Runs) == 0 {
		errs = append(errs, "no runs listed")
	}
	seen := make(map[int]bool, len(m.Runs))
	for i, r := range m.Runs {
		if r.ID <= 0 {
			errs = append(errs, fmt.Sprintf("runs[%d]: idrun must be positive", i))
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("runs[%d]: duplicate idrun %d", i, r.ID))
		}
		seen[r.ID] = true
		if strings.TrimSpace(r.Path) == "" {
			errs = append(errs, fmt.Sprintf("runs[%d]: path is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid manifest:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
