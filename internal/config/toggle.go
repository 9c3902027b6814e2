package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

const (
	// GlobalFile is the global toggle file name inside Home().
	GlobalFile = "config.yml"
	// ProjectFile is the per-project toggle file in the working directory.
	ProjectFile = ".vmem.yml"
)

// storedMode keeps the raw scalar so that an invalid value can be reported
// instead of failing the whole file.
type storedMode string

func (m *storedMode) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: auto-save mode must be a scalar", n.Line)
	}
	*m = storedMode(n.Value)
	return nil
}

type globalFile struct {
	AutoSave struct {
		Mode       storedMode `yaml:"mode"`
		PerProject bool       `yaml:"per_project"`
	} `yaml:"auto_save"`
}

type projectFile struct {
	AutoSave storedMode `yaml:"auto_save"`
}

// Toggle is the loaded auto-save state. Nil modes are unset.
type Toggle struct {
	Global  *Mode
	Project *Mode
	// Warnings lists values that were present but ignored.
	Warnings []string
}

// Effective returns the resolved mode.
func (t Toggle) Effective() Mode { return ResolveMode(t.Project, t.Global) }

// LoadToggle reads the global file from home and the project file from dir.
// Missing files leave the mode unset. Unreadable or invalid values are
// ignored with a warning.
func LoadToggle(home, dir string) Toggle {
	var t Toggle

	var g globalFile
	if ok, err := readYAML(filepath.Join(home, GlobalFile), &g); err != nil {
		t.Warnings = append(t.Warnings, err.Error())
	} else if ok && g.AutoSave.Mode != "" {
		t.Global = t.parse(GlobalFile, g.AutoSave.Mode)
	}

	var p projectFile
	if ok, err := readYAML(filepath.Join(dir, ProjectFile), &p); err != nil {
		t.Warnings = append(t.Warnings, err.Error())
	} else if ok && p.AutoSave != "" {
		t.Project = t.parse(ProjectFile, p.AutoSave)
	}
	return t
}

func (t *Toggle) parse(file string, raw storedMode) *Mode {
	m, err := parseStoredMode(string(raw))
	if err != nil {
		t.Warnings = append(t.Warnings, fmt.Sprintf("%s: %v, treating as unset", file, err))
		return nil
	}
	return &m
}

func readYAML(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// SaveGlobal writes the global toggle file, creating home if needed.
func SaveGlobal(home string, mode Mode) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", home, err)
	}
	var g globalFile
	g.AutoSave.Mode = storedMode(mode)
	g.AutoSave.PerProject = true
	return writeYAML(filepath.Join(home, GlobalFile), g)
}

// SaveProject writes the project toggle file in dir.
func SaveProject(dir string, mode Mode) error {
	return writeYAML(filepath.Join(dir, ProjectFile), projectFile{AutoSave: storedMode(mode)})
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
