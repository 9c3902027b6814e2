package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rcliao/vector-memory/internal/model"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(gw, "demo", opts...), gw
}

func doc(id, text, created string) model.Document {
	return model.Document{ID: id, Text: text, Metadata: model.Metadata{CreatedAt: created}}
}

func ids(docs []model.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestFetchAllPagination(t *testing.T) {
	tests := []struct {
		k, p      int
		pages     int
		listCalls int
	}{
		{0, 3, 0, 1},
		{1, 3, 1, 1},
		{3, 3, 1, 2},
		{7, 3, 3, 3},
		{9, 3, 3, 4},
		{2500, 1000, 3, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("K=%d,P=%d", tt.k, tt.p), func(t *testing.T) {
			s, gw := newTestService(t, WithPageSize(tt.p))
			for i := range tt.k {
				gw.add("project_demo", doc(fmt.Sprintf("d%d", i), "t", ""))
			}

			listing, err := s.FetchAll(context.Background(), model.ScopeProject, nil)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if len(listing.Documents) != tt.k {
				t.Errorf("expected %d documents, got %d", tt.k, len(listing.Documents))
			}
			if listing.Pages != tt.pages {
				t.Errorf("expected %d pages, got %d", tt.pages, listing.Pages)
			}
			if gw.listCalls != tt.listCalls {
				t.Errorf("expected %d list calls, got %d", tt.listCalls, gw.listCalls)
			}
			if listing.Collection != "project_demo" {
				t.Errorf("unexpected collection %q", listing.Collection)
			}
		})
	}
}

func TestSaveCompactCap(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestService(t)

	for i := range 10 {
		res, err := s.SaveCompact(ctx, model.ScopeProject, fmt.Sprintf("snapshot %d", i))
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		if len(res.Evicted) != 0 {
			t.Fatalf("save %d evicted %d", i, len(res.Evicted))
		}
	}
	if len(gw.deletes) != 0 {
		t.Fatalf("expected no deletes below cap, got %d", len(gw.deletes))
	}

	res, err := s.SaveCompact(ctx, model.ScopeProject, "snapshot 10")
	if err != nil {
		t.Fatalf("11th save: %v", err)
	}
	if len(gw.deletes) != 1 || len(gw.deletes[0].IDs) != 1 {
		t.Fatalf("expected exactly one deletion, got %+v", gw.deletes)
	}
	if gw.deletes[0].IDs[0] != "w1" || gw.deletes[0].Collection != "project_demo" {
		t.Errorf("expected oldest compact w1 deleted, got %+v", gw.deletes[0])
	}
	if res.Total != 10 {
		t.Errorf("expected total 10, got %d", res.Total)
	}

	listing, _ := s.Compacts(ctx, model.ScopeProject)
	if len(listing.Documents) != 10 {
		t.Errorf("expected 10 compacts, got %d", len(listing.Documents))
	}
	if listing.Documents[0].Text != "snapshot 10" {
		t.Errorf("expected newest first, got %q", listing.Documents[0].Text)
	}
}

func TestSaveCompactNeverExceedsCap(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, WithCompactCap(3))

	for i := range 12 {
		if _, err := s.SaveCompact(ctx, model.ScopeGlobal, fmt.Sprintf("c%d", i)); err != nil {
			t.Fatal(err)
		}
		listing, _ := s.Compacts(ctx, model.ScopeGlobal)
		if len(listing.Documents) > 3 {
			t.Fatalf("after save %d: %d compacts exceed cap", i, len(listing.Documents))
		}
	}
}

func TestSaveCompactTrimsOverage(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestService(t, WithCompactCap(3))

	// Two racing savers left five compacts behind.
	for i := range 5 {
		d := doc(fmt.Sprintf("c%d", i), "x", model.FormatTime(testNow.Add(time.Duration(i)*time.Hour)))
		d.Metadata.Type = model.TypeCompact
		gw.add("project_demo", d)
	}

	res, err := s.SaveCompact(ctx, model.ScopeProject, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(res.Evicted); len(got) != 3 || got[0] != "c2" || got[2] != "c0" {
		t.Errorf("expected the three oldest evicted, got %v", got)
	}
	listing, _ := s.Compacts(ctx, model.ScopeProject)
	if len(listing.Documents) != 3 {
		t.Errorf("expected cap restored to 3, got %d", len(listing.Documents))
	}
}

func TestCompactsFilterLocally(t *testing.T) {
	s, gw := newTestService(t)
	gw.ignoreWhere = true
	note := doc("n", "note", model.FormatTime(testNow))
	note.Metadata.Type = model.TypeNote
	compact := doc("c", "compact", model.FormatTime(testNow))
	compact.Metadata.Type = model.TypeCompact
	gw.add("global", note, compact)

	listing, err := s.Compacts(context.Background(), model.ScopeGlobal)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(listing.Documents); len(got) != 1 || got[0] != "c" {
		t.Errorf("expected only the compact, got %v", got)
	}
}

func TestSelectOlderThan(t *testing.T) {
	cutoff := Cutoff(testNow, 7)
	docs := []model.Document{
		doc("old", "a", model.FormatTime(cutoff.Add(-time.Second))),
		doc("edge", "b", model.FormatTime(cutoff)),
		doc("new", "c", model.FormatTime(testNow)),
		doc("missing", "d", ""),
		doc("garbage", "e", "last tuesday"),
		doc("naive", "f", "2020-01-01T00:00:00.123456"),
	}

	got := ids(SelectOlderThan(docs, cutoff))
	want := []string{"old", "naive"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelectDuplicatesKeepsFirst(t *testing.T) {
	docs := []model.Document{
		doc("a1", "same", ""),
		doc("b1", "other", ""),
		doc("a2", "same", ""),
		doc("a3", "same", ""),
	}
	got := ids(SelectDuplicates(docs))
	if len(got) != 2 || got[0] != "a2" || got[1] != "a3" {
		t.Errorf("expected [a2 a3], got %v", got)
	}
}

func TestNewestFirstOrdering(t *testing.T) {
	older := doc("older", "x", "2025-01-01T00:00:00.000000Z")
	newer := doc("newer", "x", "2025-02-01T00:00:00.000000Z")
	undated := doc("undated", "x", "")

	if !IsNewestFirst([]model.Document{newer, older, undated}) {
		t.Error("expected newest-first listing to be recognized")
	}
	docs := []model.Document{undated, older, newer}
	if IsNewestFirst(docs) {
		t.Error("expected unsorted listing to be detected")
	}
	SortNewestFirst(docs)
	if got := ids(docs); got[0] != "newer" || got[2] != "undated" {
		t.Errorf("unexpected order %v", got)
	}
}

func TestPlanSweepDuplicatesReorders(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestService(t)
	gw.add("project_demo",
		doc("old", "dup", "2025-01-01T00:00:00.000000Z"),
		doc("new", "dup", "2025-03-01T00:00:00.000000Z"),
		doc("solo", "unique", "2025-02-01T00:00:00.000000Z"),
	)

	plan, err := s.PlanSweep(ctx, model.ScopeProject, SweepOptions{Duplicates: true})
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Reordered {
		t.Error("expected the unsorted listing to be reordered")
	}
	if got := ids(plan.Delete); len(got) != 1 || got[0] != "old" {
		t.Errorf("expected the older duplicate deleted, got %v", got)
	}
	if plan.Scanned != 3 || plan.Collection != "project_demo" {
		t.Errorf("unexpected plan %+v", plan)
	}
	if len(gw.deletes) != 0 {
		t.Error("planning must not delete")
	}
}

func TestPlanSweepUnion(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestService(t)
	oldDup := model.FormatTime(testNow.AddDate(0, 0, -40))
	gw.add("global",
		doc("keep", "dup", model.FormatTime(testNow)),
		doc("both", "dup", oldDup),
		doc("aged", "unique", model.FormatTime(testNow.AddDate(0, 0, -31))),
		doc("fresh", "other", model.FormatTime(testNow.AddDate(0, 0, -1))),
	)

	plan, err := s.PlanSweep(ctx, model.ScopeGlobal, SweepOptions{Duplicates: true, OlderThanDays: 30})
	if err != nil {
		t.Fatal(err)
	}
	got := ids(plan.Delete)
	if len(got) != 2 || got[0] != "both" || got[1] != "aged" {
		t.Errorf("expected [both aged], got %v", got)
	}

	resp, err := s.ApplySweep(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	if resp.DeletedCount != 2 || len(gw.docs["global"]) != 2 {
		t.Errorf("unexpected delete result %+v, remaining %d", resp, len(gw.docs["global"]))
	}
}

func TestPlanSweepRequiresPredicate(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.PlanSweep(context.Background(), model.ScopeGlobal, SweepOptions{}); err == nil {
		t.Error("expected error without predicates")
	}
}

func TestPlanCompactSweep(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestService(t)
	for i, age := range []int{1, 10, 20} {
		d := doc(fmt.Sprintf("c%d", i), "x", model.FormatTime(testNow.AddDate(0, 0, -age)))
		d.Metadata.Type = model.TypeCompact
		gw.add("project_demo", d)
	}

	plan, err := s.PlanCompactSweep(ctx, model.ScopeProject, CompactSweepOptions{OlderThanDays: 7})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(plan.Delete); len(got) != 2 || got[0] != "c1" {
		t.Errorf("expected c1 and c2, got %v", got)
	}

	plan, _ = s.PlanCompactSweep(ctx, model.ScopeProject, CompactSweepOptions{All: true})
	if len(plan.Delete) != 3 {
		t.Errorf("expected all compacts, got %d", len(plan.Delete))
	}
}

func TestApplyEmptySweepSendsNothing(t *testing.T) {
	s, gw := newTestService(t)
	resp, err := s.ApplySweep(context.Background(), &SweepPlan{Scope: model.ScopeGlobal})
	if err != nil {
		t.Fatal(err)
	}
	if resp.DeletedCount != 0 || len(gw.deletes) != 0 {
		t.Errorf("expected no delete call, got %+v", gw.deletes)
	}
}

func TestSaveMetadata(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestService(t)

	_, err := s.Save(ctx, SaveParams{Scope: model.ScopeProject, Text: "uses JWT", Tags: []string{"auth"}, Importance: "high", Force: true})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Save(ctx, SaveParams{Scope: model.ScopeGlobal, Text: "auto", Agent: "claude", Type: "workflow"})
	if err != nil {
		t.Fatal(err)
	}

	first := gw.writes[0]
	if first.ProjectID != "demo" {
		t.Errorf("expected project id, got %q", first.ProjectID)
	}
	if first.Metadata["source"] != model.SourceManual || first.Metadata["agent"] != "cli" || first.Metadata["type"] != model.TypeNote {
		t.Errorf("unexpected forced metadata %v", first.Metadata)
	}
	if first.Metadata["importance"] != "high" {
		t.Errorf("expected importance, got %v", first.Metadata)
	}

	second := gw.writes[1]
	if second.ProjectID != "" {
		t.Errorf("global save should not carry a project id, got %q", second.ProjectID)
	}
	if second.Metadata["source"] != model.SourceAuto || second.Metadata["type"] != "workflow" {
		t.Errorf("unexpected auto metadata %v", second.Metadata)
	}

	if _, err := s.Save(ctx, SaveParams{Scope: model.ScopeGlobal}); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestQueryFiltersFloor(t *testing.T) {
	s, gw := newTestService(t)
	gw.matches["project_demo"] = []model.Match{
		{ID: "good", Similarity: 0.8},
		{ID: "edge", Similarity: RelevanceFloor},
		{ID: "noise", Similarity: 0.0005},
	}

	res, err := s.Query(context.Background(), model.ScopeProject, "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 || res.Matches[0].ID != "good" {
		t.Errorf("expected only the relevant match, got %+v", res.Matches)
	}
}

func TestSearchMergesScopes(t *testing.T) {
	s, gw := newTestService(t)
	gw.matches["project_demo"] = []model.Match{{ID: "p1", Similarity: 0.5}, {ID: "p2", Similarity: 0.2}}
	gw.matches["global"] = []model.Match{{ID: "g1", Similarity: 0.9}, {ID: "g2", Similarity: 0.3}}

	got, err := s.Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 merged matches, got %d", len(got))
	}
	if got[0].ID != "g1" || got[0].Collection != "global" || got[1].ID != "p1" || got[2].ID != "g2" {
		t.Errorf("unexpected merge order %+v", got)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	s, gw := newTestService(t)
	gw.add("project_demo",
		doc("a", "a", "2025-01-01T00:00:00.000000Z"),
		doc("c", "c", "2025-03-01T00:00:00.000000Z"),
		doc("b", "b", "2025-02-01T00:00:00.000000Z"),
	)

	listing, err := s.History(context.Background(), model.ScopeProject, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(listing.Documents); len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Errorf("expected [c b], got %v", got)
	}
}

func TestPick(t *testing.T) {
	docs := []model.Document{doc("1", "a", ""), doc("2", "b", "")}
	d, err := Pick(docs, 2)
	if err != nil || d.ID != "2" {
		t.Errorf("expected second doc, got %v, %v", d.ID, err)
	}
	for _, idx := range []int{0, 3, -1} {
		if _, err := Pick(docs, idx); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("index %d: expected ErrInvalidIndex, got %v", idx, err)
		}
	}
	if _, err := Pick(nil, 1); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex on empty listing, got %v", err)
	}
}

func TestImport(t *testing.T) {
	s, gw := newTestService(t)
	exported := doc("old1", "uses JWT", "2024-05-01T00:00:00.000000Z")
	exported.Metadata.Visibility = "project"
	exported.Metadata.ProjectSlug = "other"
	exported.Metadata.Agent = "claude"
	exported.Metadata.Extra = map[string]any{"tags": []any{"auth"}}

	n, err := s.Import(context.Background(), model.ScopeGlobal, []model.Document{exported, doc("empty", "", "")})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(gw.writes) != 1 {
		t.Fatalf("expected one write, got %d (%d)", n, len(gw.writes))
	}
	meta := gw.writes[0].Metadata
	for _, k := range []string{model.KeyVisibility, model.KeyCreatedAt, model.KeyProjectSlug} {
		if _, ok := meta[k]; ok {
			t.Errorf("system field %s should be left to the gateway", k)
		}
	}
	if meta["original_created_at"] != "2024-05-01T00:00:00.000000Z" || meta["agent"] != "claude" {
		t.Errorf("unexpected metadata %v", meta)
	}
	if _, ok := exported.Metadata.Extra["original_created_at"]; ok {
		t.Error("import mutated the caller's document")
	}
}

func TestDropProject(t *testing.T) {
	s, gw := newTestService(t)
	if _, err := s.DropProject(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(gw.dropped) != 1 || gw.dropped[0] != "project_demo" {
		t.Errorf("unexpected drops %v", gw.dropped)
	}

	empty := New(gw, "  ")
	if _, err := empty.DropProject(context.Background()); !errors.Is(err, model.ErrEmptyProject) {
		t.Errorf("expected ErrEmptyProject, got %v", err)
	}
}
