package model

import (
	"errors"
	"strings"
)

// GlobalCollection is the collection name of the global scope.
const GlobalCollection = "global"

// ProjectPrefix prefixes every project collection name.
const ProjectPrefix = "project_"

// ErrEmptyProject is returned when a project-scoped name is requested without
// a usable project id.
var ErrEmptyProject = errors.New("project id is required for project scope")

var slugReplacer = strings.NewReplacer(" ", "-", "_", "-")

// Slugify normalizes a project id: trimmed, lower-cased, spaces and
// underscores replaced with hyphens. Both the gateway and the CLI derive
// collection names through this function only.
func Slugify(projectID string) string {
	return slugReplacer.Replace(strings.ToLower(strings.TrimSpace(projectID)))
}

// CollectionName derives the collection for a scope.
func CollectionName(scope Scope, projectID string) (string, error) {
	if scope == ScopeGlobal {
		return GlobalCollection, nil
	}
	slug := Slugify(projectID)
	if slug == "" {
		return "", ErrEmptyProject
	}
	return ProjectPrefix + slug, nil
}
