package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rcliao/vector-memory/internal/api"
	"github.com/rcliao/vector-memory/internal/model"
)

// SweepOptions selects documents for deletion. Both predicates may be set;
// the plan deletes their union.
type SweepOptions struct {
	OlderThanDays int
	Duplicates    bool
}

// SweepPlan is the deletion set computed by a sweep, not yet applied.
type SweepPlan struct {
	Scope      model.Scope
	Collection string
	Scanned    int
	Delete     []model.Document
	// Reordered is set when the listing was not newest-first and had to be
	// sorted before duplicates could be picked.
	Reordered bool
}

// PlanSweep fetches the whole collection and computes what opts would
// delete. Nothing is deleted.
func (s *Service) PlanSweep(ctx context.Context, scope model.Scope, opts SweepOptions) (*SweepPlan, error) {
	if opts.OlderThanDays <= 0 && !opts.Duplicates {
		return nil, fmt.Errorf("nothing to sweep: set an age or duplicates")
	}
	listing, err := s.FetchAll(ctx, scope, nil)
	if err != nil {
		return nil, err
	}
	plan := &SweepPlan{Scope: scope, Collection: listing.Collection, Scanned: len(listing.Documents)}

	var dupes, old []model.Document
	if opts.Duplicates {
		docs := listing.Documents
		if !IsNewestFirst(docs) {
			docs = slices.Clone(docs)
			SortNewestFirst(docs)
			plan.Reordered = true
			s.log.Info().Str("collection", plan.Collection).Msg("listing not newest-first, sorted before dedupe")
		}
		dupes = SelectDuplicates(docs)
	}
	if opts.OlderThanDays > 0 {
		old = SelectOlderThan(listing.Documents, Cutoff(s.now(), opts.OlderThanDays))
	}
	plan.Delete = UnionByID(dupes, old)
	return plan, nil
}

// CompactSweepOptions selects compacts for deletion.
type CompactSweepOptions struct {
	All           bool
	OlderThanDays int
}

// PlanCompactSweep computes which compacts opts would delete.
func (s *Service) PlanCompactSweep(ctx context.Context, scope model.Scope, opts CompactSweepOptions) (*SweepPlan, error) {
	if !opts.All && opts.OlderThanDays <= 0 {
		return nil, fmt.Errorf("nothing to sweep: set --all or an age")
	}
	listing, err := s.Compacts(ctx, scope)
	if err != nil {
		return nil, err
	}
	plan := &SweepPlan{Scope: scope, Collection: listing.Collection, Scanned: len(listing.Documents)}
	if opts.All {
		plan.Delete = listing.Documents
	} else {
		plan.Delete = SelectOlderThan(listing.Documents, Cutoff(s.now(), opts.OlderThanDays))
	}
	return plan, nil
}

// ApplySweep deletes everything in plan in one call.
func (s *Service) ApplySweep(ctx context.Context, plan *SweepPlan) (*api.DeleteDocumentsResponse, error) {
	return s.Delete(ctx, plan.Scope, plan.Delete)
}

// Cutoff is the instant days before now, in UTC.
func Cutoff(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}

// SelectOlderThan returns the documents created strictly before cutoff.
// Documents without a parseable created_at are never selected.
func SelectOlderThan(docs []model.Document, cutoff time.Time) []model.Document {
	var out []model.Document
	for _, d := range docs {
		created, ok := d.Metadata.Created()
		if ok && created.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out
}

// SelectDuplicates groups docs by exact text and returns every member of a
// group except the first. Callers that mean "keep newest" must pass docs
// newest-first.
func SelectDuplicates(docs []model.Document) []model.Document {
	seen := make(map[string]bool, len(docs))
	var out []model.Document
	for _, d := range docs {
		if seen[d.Text] {
			out = append(out, d)
			continue
		}
		seen[d.Text] = true
	}
	return out
}

// createdKey orders documents by created_at; unparseable timestamps sort as
// the oldest possible.
func createdKey(d model.Document) time.Time {
	t, _ := d.Metadata.Created()
	return t
}

// IsNewestFirst reports whether docs are ordered by created_at descending.
func IsNewestFirst(docs []model.Document) bool {
	return slices.IsSortedFunc(docs, compareNewestFirst)
}

// SortNewestFirst stably sorts docs by created_at descending.
func SortNewestFirst(docs []model.Document) {
	slices.SortStableFunc(docs, compareNewestFirst)
}

func compareNewestFirst(a, b model.Document) int {
	return createdKey(b).Compare(createdKey(a))
}

// UnionByID concatenates the sets, keeping the first occurrence of each id.
func UnionByID(sets ...[]model.Document) []model.Document {
	seen := map[string]bool{}
	out := []model.Document{}
	for _, set := range sets {
		for _, d := range set {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	return out
}

// FilterRelevant keeps matches with similarity strictly above floor.
func FilterRelevant(matches []model.Match, floor float64) []model.Match {
	out := make([]model.Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity > floor {
			out = append(out, m)
		}
	}
	return out
}

// MergeMatches combines match lists, orders them by similarity descending and
// keeps the first topK. topK <= 0 keeps all.
func MergeMatches(topK int, lists ...[]ScopedMatch) []ScopedMatch {
	var all []ScopedMatch
	for _, l := range lists {
		all = append(all, l...)
	}
	slices.SortStableFunc(all, func(a, b ScopedMatch) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	if all == nil {
		all = []ScopedMatch{}
	}
	return all
}
