package scaffold

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SettingsFile holds the agent hook configuration.
var SettingsFile = filepath.Join(".claude", "settings.json")

// ErrNoClaudeDir is returned when hooks are toggled outside a project that
// has a .claude directory.
var ErrNoClaudeDir = errors.New(".claude folder not available")

type hookCommand struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

type hookMatcher struct {
	Matcher string        `json:"matcher"`
	Hooks   []hookCommand `json:"hooks"`
}

func defaultHooks() map[string][]hookMatcher {
	entry := func(script string) []hookMatcher {
		return []hookMatcher{{Hooks: []hookCommand{{Type: "command", Command: "~/.vmem/" + script}}}}
	}
	return map[string][]hookMatcher{
		"UserPromptSubmit": entry("vmem-pre-query.sh"),
		"Stop":             entry("vmem-post-save.sh"),
	}
}

// HookState is the hook configuration found in a project.
type HookState int

const (
	HooksNotConfigured HookState = iota
	HooksDisabled
	HooksEnabled
)

func (s HookState) String() string {
	switch s {
	case HooksEnabled:
		return "enabled"
	case HooksDisabled:
		return "disabled"
	}
	return "not configured"
}

// readSettings returns the settings keys, or nil when the file is missing.
// Unknown keys are preserved on write.
func readSettings(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	settings := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return settings, nil
}

func writeSettings(path string, settings map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, string(data)+"\n")
}

// HooksStatus reports whether settings.json carries a hooks key.
func HooksStatus(dir string) (HookState, error) {
	settings, err := readSettings(filepath.Join(dir, SettingsFile))
	if err != nil {
		return HooksNotConfigured, err
	}
	if settings == nil {
		return HooksNotConfigured, nil
	}
	if _, ok := settings["hooks"]; ok {
		return HooksEnabled, nil
	}
	return HooksDisabled, nil
}

// EnableHooks sets the hooks key. Without create, the .claude directory
// must already exist.
func EnableHooks(dir string, create bool) (Change, error) {
	if _, err := os.Stat(filepath.Join(dir, ".claude")); err != nil && !create {
		return Change{}, ErrNoClaudeDir
	}
	path := filepath.Join(dir, SettingsFile)
	settings, err := readSettings(path)
	if err != nil {
		return Change{}, err
	}
	op := OpUpdated
	if settings == nil {
		settings = map[string]json.RawMessage{}
		op = OpCreated
	}
	hooks, err := json.Marshal(defaultHooks())
	if err != nil {
		return Change{}, err
	}
	settings["hooks"] = hooks
	if err := writeSettings(path, settings); err != nil {
		return Change{}, err
	}
	return Change{Path: SettingsFile, Op: op, Detail: "hooks enabled"}, nil
}

// DisableHooks removes the hooks key, leaving the rest of settings.json.
func DisableHooks(dir string) (Change, error) {
	if _, err := os.Stat(filepath.Join(dir, ".claude")); err != nil {
		return Change{}, ErrNoClaudeDir
	}
	path := filepath.Join(dir, SettingsFile)
	settings, err := readSettings(path)
	if err != nil {
		return Change{}, err
	}
	if settings == nil {
		return Change{Path: SettingsFile, Op: OpSkipped, Detail: "no settings file"}, nil
	}
	if _, ok := settings["hooks"]; !ok {
		return Change{Path: SettingsFile, Op: OpUnchanged, Detail: "hooks were not enabled"}, nil
	}
	delete(settings, "hooks")
	if err := writeSettings(path, settings); err != nil {
		return Change{}, err
	}
	return Change{Path: SettingsFile, Op: OpUpdated, Detail: "hooks disabled"}, nil
}
