// Package accumulate builds the two tally maps the occurrence calculation
// joins: complete-checklist counts per hotspot (the denominator side) and
// deduplicated species detections per hotspot (the numerator side).
//
// Both accumulators are additive over bounded-key maps, so chunk boundaries in
// the input stream never affect the result, and both support merging, which
// keeps the door open for sharded accumulation even though the pipeline runs
// them sequentially today.
package accumulate

import "github.com/aingebritson/ebird-hotspot-guide/internal/ebird"

// HotspotTally is the finalized denominator record for one hotspot: how many
// distinct complete checklists were submitted there, plus the locality
// metadata captured from the first qualifying checklist.
type HotspotTally struct {
	LocalityID string
	Name       string
	Latitude   float64
	Longitude  float64
	Checklists int

	// seen dedups checklist IDs within this locality. The sampling file has
	// one row per checklist, but the dedup guards against repeated rows and
	// costs only the number of checklists at this locality, not file size.
	seen map[string]struct{}
}

// ChecklistAccumulator counts distinct complete checklists per hotspot.
// Not safe for concurrent use; shard and Merge instead.
type ChecklistAccumulator struct {
	tallies   map[string]*HotspotTally
	finalized bool
}

// NewChecklistAccumulator returns an empty accumulator.
func NewChecklistAccumulator() *ChecklistAccumulator {
	return &ChecklistAccumulator{tallies: make(map[string]*HotspotTally)}
}

// Add records one qualifying checklist. The same checklist ID seen again at
// the same locality is ignored.
func (a *ChecklistAccumulator) Add(c ebird.Checklist) {
	if a.finalized {
		panic("accumulate: Add after Finalize")
	}

	t, ok := a.tallies[c.LocalityID]
	if !ok {
		t = &HotspotTally{
			LocalityID: c.LocalityID,
			Name:       c.LocalityName,
			Latitude:   c.Latitude,
			Longitude:  c.Longitude,
			seen:       make(map[string]struct{}),
		}
		a.tallies[c.LocalityID] = t
	}

	if _, dup := t.seen[c.ChecklistID]; dup {
		return
	}
	t.seen[c.ChecklistID] = struct{}{}
	t.Checklists++
}

// Merge folds another accumulator into this one. Counts are recomputed from
// the union of the dedup sets, so the same checklist arriving via two shards
// still counts once.
func (a *ChecklistAccumulator) Merge(other *ChecklistAccumulator) {
	if a.finalized {
		panic("accumulate: Merge after Finalize")
	}

	for id, ot := range other.tallies {
		t, ok := a.tallies[id]
		if !ok {
			a.tallies[id] = ot
			continue
		}
		for checklistID := range ot.seen {
			if _, dup := t.seen[checklistID]; dup {
				continue
			}
			t.seen[checklistID] = struct{}{}
			t.Checklists++
		}
	}
}

// Finalize freezes the accumulator and returns the tally map. No rate may be
// computed before this point; callers must have exhausted the input stream.
func (a *ChecklistAccumulator) Finalize() map[string]*HotspotTally {
	a.finalized = true
	return a.tallies
}

// ChecklistSummary aggregates a finalized tally map for run metadata.
type ChecklistSummary struct {
	Hotspots         int // localities meeting the minimum
	ExcludedBelowMin int // localities with at least one checklist but below it
	TotalChecklists  int // qualifying checklists at included hotspots
}

// Summarize reports how many hotspots clear the minimum-inclusion threshold,
// how many are excluded for falling below it, and the checklist total across
// the included hotspots.
func Summarize(tallies map[string]*HotspotTally, minChecklists int) ChecklistSummary {
	var s ChecklistSummary
	for _, t := range tallies {
		if t.Checklists < minChecklists {
			s.ExcludedBelowMin++
			continue
		}
		s.Hotspots++
		s.TotalChecklists += t.Checklists
	}
	return s
}
