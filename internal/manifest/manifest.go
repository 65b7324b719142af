// Package manifest reads and writes project files describing tasks and their
// dependencies, in TOML or YAML, and turns them into dependency graphs.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date format used for start and due fields.
const DateLayout = "2006-01-02"

// Manifest errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
	ErrInvalidTask       = errors.New("invalid task")
)

// Manifest is the on-disk description of one project.
type Manifest struct {
	Project      Project          `toml:"project" yaml:"project"`
	Tasks        []TaskSpec       `toml:"task" yaml:"tasks"`
	Dependencies []DependencySpec `toml:"dependency,omitempty" yaml:"dependencies,omitempty"`
}

// Project holds project-wide settings. Start is the calendar date of day 0.
type Project struct {
	Name  string `toml:"name" yaml:"name"`
	Start string `toml:"start,omitempty" yaml:"start,omitempty"`
}

// TaskSpec describes one task. Duration comes from DurationDays, else
// EstimateHours, else the span between Start and Due.
type TaskSpec struct {
	ID            string   `toml:"id" yaml:"id"`
	Title         string   `toml:"title,omitempty" yaml:"title,omitempty"`
	DurationDays  *float64 `toml:"duration_days,omitempty" yaml:"duration_days,omitempty"`
	EstimateHours *float64 `toml:"estimate_hours,omitempty" yaml:"estimate_hours,omitempty"`
	Start         string   `toml:"start,omitempty" yaml:"start,omitempty"`
	Due           string   `toml:"due,omitempty" yaml:"due,omitempty"`
	EarliestStart *float64 `toml:"earliest_start,omitempty" yaml:"earliest_start,omitempty"`
	Priority      string   `toml:"priority,omitempty" yaml:"priority,omitempty"`
	// DependsOn lists the tasks this one waits on. Each entry becomes a
	// finish-to-start edge from the named task to this one.
	DependsOn []string `toml:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// DependencySpec is an explicit typed edge.
type DependencySpec struct {
	ID          string `toml:"id,omitempty" yaml:"id,omitempty"`
	Predecessor string `toml:"predecessor" yaml:"predecessor"`
	Successor   string `toml:"successor" yaml:"successor"`
	Type        string `toml:"type,omitempty" yaml:"type,omitempty"`
}

type format int

const (
	formatTOML format = iota + 1
	formatYAML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	}
	return 0, fmt.Errorf("manifest: %w: %s", ErrUnsupportedFormat, path)
}

// Load reads and decodes the manifest at path. The format is chosen by file
// extension: .toml, .yaml or .yml.
func Load(path string) (*Manifest, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return decode(data, f, path)
}

func decode(data []byte, f format, name string) (*Manifest, error) {
	var m Manifest
	switch f {
	case formatTOML:
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("manifest: parse %s: %w", name, err)
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("manifest: parse %s: %w", name, err)
		}
	}
	return &m, nil
}

// Save encodes m in the format implied by path and replaces the file
// atomically through a temporary sibling and rename.
func Save(path string, m *Manifest) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}
	var data []byte
	switch f {
	case formatTOML:
		data, err = toml.Marshal(m)
	case formatYAML:
		data, err = yaml.Marshal(m)
	}
	if err != nil {
		return fmt.Errorf("manifest: encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("manifest: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("manifest: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("manifest: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("manifest: rename to %s: %w", path, err)
	}
	return nil
}

// Task returns a pointer to the task spec with the given ID, or nil.
func (m *Manifest) Task(id string) *TaskSpec {
	for i := range m.Tasks {
		if m.Tasks[i].ID == id {
			return &m.Tasks[i]
		}
	}
	return nil
}
