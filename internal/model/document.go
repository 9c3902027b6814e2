// Package model defines the core memory data types.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Scope selects which collection a request targets.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

// ScopeFor maps the CLI's --global flag onto a scope. Project is the default.
func ScopeFor(global bool) Scope {
	if global {
		return ScopeGlobal
	}
	return ScopeProject
}

// Document types and sources recorded in metadata.
const (
	TypeNote    = "note"
	TypeCompact = "compact"

	SourceManual = "manual"
	SourceAuto   = "auto"
)

// TimeLayout is the ISO-8601 UTC form used for created_at/updated_at.
// Fixed-width so that lexical and chronological order agree.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp. Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Reserved metadata keys. Everything else lives in Metadata.Extra.
const (
	KeyVisibility  = "visibility"
	KeyCreatedAt   = "created_at"
	KeyUpdatedAt   = "updated_at"
	KeyAgent       = "agent"
	KeySource      = "source"
	KeyType        = "type"
	KeyProjectSlug = "project_slug"
)

// Metadata is the metadata attached to a Document: the known fields plus an
// open map of caller-defined extension keys (tags, importance, ...).
type Metadata struct {
	Visibility  string
	CreatedAt   string
	UpdatedAt   string
	Agent       string
	Source      string
	Type        string
	ProjectSlug string
	Extra       map[string]any
}

func (m *Metadata) fields() []struct {
	key string
	val *string
} {
	return []struct {
		key string
		val *string
	}{
		{KeyVisibility, &m.Visibility},
		{KeyCreatedAt, &m.CreatedAt},
		{KeyUpdatedAt, &m.UpdatedAt},
		{KeyAgent, &m.Agent},
		{KeySource, &m.Source},
		{KeyType, &m.Type},
		{KeyProjectSlug, &m.ProjectSlug},
	}
}

// ToMap flattens m into the wire/store representation. Empty known fields are
// omitted.
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m.Extra)+7)
	for k, v := range m.Extra {
		out[k] = v
	}
	for _, f := range m.fields() {
		if *f.val != "" {
			out[f.key] = *f.val
		}
	}
	return out
}

// MetadataFromMap is the inverse of ToMap. Non-string values under a reserved
// key are stringified.
func MetadataFromMap(raw map[string]any) Metadata {
	var m Metadata
	reserved := make(map[string]*string, 7)
	for _, f := range m.fields() {
		reserved[f.key] = f.val
	}
	for k, v := range raw {
		if dst, ok := reserved[k]; ok {
			switch s := v.(type) {
			case nil:
			case string:
				*dst = s
			default:
				*dst = fmt.Sprint(s)
			}
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
	return m
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = MetadataFromMap(raw)
	return nil
}

// Created returns the parsed created_at, or false when missing or malformed.
func (m Metadata) Created() (time.Time, bool) {
	t, err := ParseTime(m.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Tags returns metadata.tags. Stores without list support hold the tags as a
// comma-joined string.
func (m Metadata) Tags() []string {
	switch v := m.Extra["tags"].(type) {
	case string:
		var tags []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		return tags
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

// Document is a stored text with its metadata.
type Document struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Match is a Document returned by a nearest-neighbour query.
type Match struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Metadata   Metadata `json:"metadata"`
	Distance   float64  `json:"distance"`
	Similarity float64  `json:"similarity"`
}

// Similarity maps a raw store distance into (0,1]: 1/(1+d). It is monotone in
// distance but not calibrated across distance metrics. Negative distances
// (inner-product spaces) are clamped to 0.
func Similarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
