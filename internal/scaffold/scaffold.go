// Package scaffold writes and removes the per-project vmem files: agent
// instructions, the toggle file, .gitignore entries and agent hooks.
package scaffold

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/rcliao/vector-memory/internal/config"
)

//go:embed templates/vmem.md
var docTemplate string

//go:embed templates/agent-rules.md
var rulesTemplate string

// Files managed in the project directory.
var (
	DocFile   = ".vmem.md"
	RulesFile = filepath.Join(".agent", "rules", "vmem.md")
)

// AgentFiles are the agent instruction files that get a pointer to DocFile.
var AgentFiles = []string{"CLAUDE.md", "GEMINI.md", "QWEN.md", "AGENTS.md"}

const reference = "\n## Vector Memory\nFor vmem commands and auto-save/retrieval behavior, read: `.vmem.md`\n"

const agentFileHeader = "# Agent Instructions\n"

// Op describes what happened to a file.
type Op string

const (
	OpCreated   Op = "created"
	OpUpdated   Op = "updated"
	OpExists    Op = "exists"
	OpUnchanged Op = "up to date"
	OpBackedUp  Op = "backed up"
	OpRemoved   Op = "removed"
	OpSkipped   Op = "skipped"
)

// Change is one file action, relative to the project directory.
type Change struct {
	Path   string
	Op     Op
	Detail string
}

func (c Change) String() string {
	if c.Detail != "" {
		return fmt.Sprintf("%s %s (%s)", c.Path, c.Op, c.Detail)
	}
	return fmt.Sprintf("%s %s", c.Path, c.Op)
}

// InitOptions configures Init.
type InitOptions struct {
	// On turns auto-save on and installs the agent hooks.
	On bool
	// Choose picks which agent files to create when none exist. Nil, or an
	// empty answer, creates AGENTS.md.
	Choose func(candidates []string) []string
}

// Init scaffolds dir. Existing files are left alone except for the toggle
// file when opts.On is set.
func Init(dir string, opts InitOptions) ([]Change, error) {
	var changes []Change

	c, err := createIfMissing(dir, DocFile, docTemplate)
	if err != nil {
		return changes, err
	}
	changes = append(changes, c)

	mode := config.ModeOff
	if opts.On {
		mode = config.ModeOn
	}
	switch _, err := os.Stat(filepath.Join(dir, config.ProjectFile)); {
	case errors.Is(err, os.ErrNotExist):
		if err := config.SaveProject(dir, mode); err != nil {
			return changes, err
		}
		changes = append(changes, Change{Path: config.ProjectFile, Op: OpCreated, Detail: "auto_save: " + string(mode)})
	case err != nil:
		return changes, err
	case opts.On:
		if err := config.SaveProject(dir, mode); err != nil {
			return changes, err
		}
		changes = append(changes, Change{Path: config.ProjectFile, Op: OpUpdated, Detail: "auto_save: on"})
	default:
		changes = append(changes, Change{Path: config.ProjectFile, Op: OpExists})
	}

	c, err = createIfMissing(dir, RulesFile, rulesTemplate)
	if err != nil {
		return changes, err
	}
	changes = append(changes, c)

	c, err = UpdateGitignore(dir)
	if err != nil {
		return changes, err
	}
	changes = append(changes, c)

	agent, err := linkAgentFiles(dir, opts.Choose)
	changes = append(changes, agent...)
	if err != nil {
		return changes, err
	}

	if opts.On {
		c, err := EnableHooks(dir, true)
		if err != nil {
			return changes, err
		}
		changes = append(changes, c)
	}
	return changes, nil
}

func linkAgentFiles(dir string, choose func([]string) []string) ([]Change, error) {
	var found []string
	for _, name := range AgentFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			found = append(found, name)
		}
	}

	var changes []Change
	if len(found) > 0 {
		for _, name := range found {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return changes, err
			}
			if strings.Contains(string(data), DocFile) {
				changes = append(changes, Change{Path: name, Op: OpExists, Detail: "already references " + DocFile})
				continue
			}
			if err := writeFile(path, string(data)+reference); err != nil {
				return changes, err
			}
			changes = append(changes, Change{Path: name, Op: OpUpdated})
		}
		return changes, nil
	}

	var names []string
	if choose != nil {
		for _, n := range choose(AgentFiles) {
			for _, known := range AgentFiles {
				if n == known {
					names = append(names, n)
				}
			}
		}
	}
	if len(names) == 0 {
		names = []string{"AGENTS.md"}
	}
	for _, name := range names {
		if err := writeFile(filepath.Join(dir, name), agentFileHeader+reference); err != nil {
			return changes, err
		}
		changes = append(changes, Change{Path: name, Op: OpCreated})
	}
	return changes, nil
}

// Update rewrites the generated docs to the current templates. A changed
// file is first copied to <name>.md.bak.
func Update(dir string) ([]Change, error) {
	var changes []Change
	for _, f := range []struct{ rel, content string }{
		{DocFile, docTemplate},
		{RulesFile, rulesTemplate},
	} {
		path := filepath.Join(dir, f.rel)
		current, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if err := writeFile(path, f.content); err != nil {
				return changes, err
			}
			changes = append(changes, Change{Path: f.rel, Op: OpCreated})
			continue
		case err != nil:
			return changes, err
		}
		if string(current) == f.content {
			changes = append(changes, Change{Path: f.rel, Op: OpUnchanged})
			continue
		}
		backup := strings.TrimSuffix(f.rel, ".md") + ".md.bak"
		if err := writeFile(filepath.Join(dir, backup), string(current)); err != nil {
			return changes, err
		}
		changes = append(changes, Change{Path: f.rel, Op: OpBackedUp, Detail: backup})
		if err := writeFile(path, f.content); err != nil {
			return changes, err
		}
		changes = append(changes, Change{Path: f.rel, Op: OpUpdated})
	}
	return changes, nil
}

// Uninit removes the local vmem files, the hooks and the agent file
// references. With dryRun nothing is touched. The .gitignore entries are
// kept.
func Uninit(dir string, dryRun bool) ([]Change, error) {
	var changes []Change
	apply := func(c Change, fn func() error) error {
		if !dryRun {
			if err := fn(); err != nil {
				return err
			}
		}
		changes = append(changes, c)
		return nil
	}

	for _, rel := range []string{DocFile, config.ProjectFile, RulesFile} {
		path := filepath.Join(dir, rel)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := apply(Change{Path: rel, Op: OpRemoved}, func() error { return os.Remove(path) }); err != nil {
			return changes, err
		}
	}
	if !dryRun {
		// Only succeeds when empty.
		os.Remove(filepath.Join(dir, ".agent", "rules"))
		os.Remove(filepath.Join(dir, ".agent"))
	}

	state, err := HooksStatus(dir)
	if err != nil {
		return changes, err
	}
	if state == HooksEnabled {
		err := apply(Change{Path: SettingsFile, Op: OpUpdated, Detail: "hooks removed"}, func() error {
			_, err := DisableHooks(dir)
			return err
		})
		if err != nil {
			return changes, err
		}
	}

	for _, name := range AgentFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil || !strings.Contains(string(data), reference) {
			continue
		}
		rest := strings.Replace(string(data), reference, "", 1)
		if rest == agentFileHeader || strings.TrimSpace(rest) == "" {
			err = apply(Change{Path: name, Op: OpRemoved}, func() error { return os.Remove(path) })
		} else {
			err = apply(Change{Path: name, Op: OpUpdated, Detail: "reference removed"}, func() error { return writeFile(path, rest) })
		}
		if err != nil {
			return changes, err
		}
	}
	return changes, nil
}

func createIfMissing(dir, rel, content string) (Change, error) {
	path := filepath.Join(dir, rel)
	if _, err := os.Stat(path); err == nil {
		return Change{Path: rel, Op: OpExists}, nil
	}
	if err := writeFile(path, content); err != nil {
		return Change{}, err
	}
	return Change{Path: rel, Op: OpCreated}, nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader([]byte(content))); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
