package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMetadataJSONFlattensExtra(t *testing.T) {
	m := Metadata{
		Visibility: "project",
		Type:       TypeCompact,
		Extra:      map[string]any{"tags": []string{"auth"}, "importance": "high"},
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["visibility"] != "project" || raw["type"] != "compact" || raw["importance"] != "high" {
		t.Errorf("unexpected flattened metadata: %v", raw)
	}
	if _, ok := raw["created_at"]; ok {
		t.Error("empty known fields should be omitted")
	}

	var back Metadata
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Type != TypeCompact || back.Visibility != "project" {
		t.Errorf("known fields lost: %+v", back)
	}
	if _, ok := back.Extra["type"]; ok {
		t.Error("reserved key leaked into Extra")
	}
	if tags := back.Tags(); len(tags) != 1 || tags[0] != "auth" {
		t.Errorf("expected tags [auth], got %v", tags)
	}
}

func TestMetadataFromMapStringifiesReserved(t *testing.T) {
	m := MetadataFromMap(map[string]any{"type": 3.0, "agent": nil, "x": 1})
	if m.Type != "3" {
		t.Errorf("expected type %q, got %q", "3", m.Type)
	}
	if m.Agent != "" {
		t.Errorf("expected empty agent, got %q", m.Agent)
	}
	if m.Extra["x"] != 1 {
		t.Errorf("expected extra x=1, got %v", m.Extra["x"])
	}
}

func TestParseTime(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 123456000, time.UTC)
	s := FormatTime(ts)
	if s != "2025-03-04T05:06:07.123456Z" {
		t.Fatalf("unexpected format %q", s)
	}
	got, err := ParseTime(s)
	if err != nil || !got.Equal(ts) {
		t.Errorf("round trip: got %v (%v)", got, err)
	}

	naive, err := ParseTime("2025-03-04T05:06:07.5")
	if err != nil {
		t.Fatal(err)
	}
	if naive.Location() != time.UTC || naive.Second() != 7 {
		t.Errorf("naive timestamp not read as UTC: %v", naive)
	}

	for _, bad := range []string{"", "yesterday", "2025-13-40"} {
		if _, err := ParseTime(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSimilarityDecreasesWithDistance(t *testing.T) {
	if Similarity(0) != 1 {
		t.Errorf("expected 1 at distance 0, got %f", Similarity(0))
	}
	prev := Similarity(0)
	for _, d := range []float64{0.1, 0.5, 1, 2, 10, 1000} {
		s := Similarity(d)
		if s >= prev || s <= 0 {
			t.Errorf("Similarity(%v) = %f not in (0, %f)", d, s, prev)
		}
		prev = s
	}
	if Similarity(1) != 0.5 {
		t.Errorf("expected 0.5 at distance 1, got %f", Similarity(1))
	}
	if Similarity(-3) != 1 {
		t.Errorf("negative distance should clamp to 1, got %f", Similarity(-3))
	}
}

func TestTagsFromJoinedString(t *testing.T) {
	m := MetadataFromMap(map[string]any{"tags": "auth, api,,jwt"})
	got := m.Tags()
	want := []string{"auth", "api", "jwt"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tag %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
