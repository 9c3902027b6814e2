package scaffold

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var gitignoreEntries = []string{
	"# vmem",
	".vmem.md",
	".vmem.yml",
	"",
	"# Agent tools",
	".agent/",
	".claude/",
	".codex/",
	".code-graph/",
	"",
	"# Agent markdown files",
	"AGENTS.md",
	"CLAUDE.md",
	"GEMINI.md",
	"QWEN.md",
}

// UpdateGitignore appends the vmem and agent entries that .gitignore does
// not list yet. Nothing is written when every entry is present.
func UpdateGitignore(dir string) (Change, error) {
	path := filepath.Join(dir, ".gitignore")
	data, err := os.ReadFile(path)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Change{}, err
	}

	have := map[string]bool{}
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			have[line] = true
		}
	}

	var add []string
	missing := 0
	for _, e := range gitignoreEntries {
		if e == "" || strings.HasPrefix(e, "#") {
			add = append(add, e)
			continue
		}
		if !have[e] {
			add = append(add, e)
			missing++
		}
	}
	if missing == 0 {
		return Change{Path: ".gitignore", Op: OpUnchanged}, nil
	}

	content := string(data)
	if exists {
		content += "\n\n"
	}
	content += strings.Join(add, "\n") + "\n"
	if err := writeFile(path, content); err != nil {
		return Change{}, err
	}
	if exists {
		return Change{Path: ".gitignore", Op: OpUpdated}, nil
	}
	return Change{Path: ".gitignore", Op: OpCreated}, nil
}
