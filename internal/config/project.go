package config

import (
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/rcliao/vector-memory/internal/model"
)

// ProjectRoot returns the enclosing git worktree root of dir, or dir itself
// when it is not inside a repository.
func ProjectRoot(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return dir
	}
	wt, err := repo.Worktree()
	if err != nil {
		return dir
	}
	return wt.Filesystem.Root()
}

// ProjectID derives the project id from the base name of dir's project root.
func ProjectID(dir string) string {
	return model.Slugify(filepath.Base(ProjectRoot(dir)))
}
