// Package templates provides the read-only recurring timetable that
// occurrences are generated from.
package templates

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"flight-status-sim/internal/model"
	"flight-status-sim/internal/store"
)

// Source reads flight templates. Template returns store.ErrNotFound for an
// unknown id.
type Source interface {
	Templates(ctx context.Context) ([]model.FlightTemplate, error)
	Template(ctx context.Context, id string) (*model.FlightTemplate, error)
}

// Timetable is the YAML document FileSource reads.
type Timetable struct {
	Templates []model.FlightTemplate `yaml:"templates"`
}

// FileSource reads templates from a YAML file on every call, so edits are
// picked up without a restart. Put a Cache in front of it.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) load() ([]model.FlightTemplate, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timetable file: %w", err)
	}
	var tt Timetable
	if err := yaml.Unmarshal(data, &tt); err != nil {
		return nil, fmt.Errorf("failed to parse timetable file: %w", err)
	}
	seen := make(map[string]bool, len(tt.Templates))
	for _, t := range tt.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template %s has no id", t.FlightNumber)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return tt.Templates, nil
}

func (f *FileSource) Templates(ctx context.Context) ([]model.FlightTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.load()
}

func (f *FileSource) Template(ctx context.Context, id string) (*model.FlightTemplate, error) {
	all, err := f.Templates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, store.ErrNotFound
}
