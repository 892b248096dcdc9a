package accumulate

import "github.com/aingebritson/ebird-hotspot-guide/internal/ebird"

// SpeciesKey identifies a species-level taxon.
type SpeciesKey struct {
	CommonName     string
	ScientificName string
}

// TallyKey identifies one (species, hotspot) pair.
type TallyKey struct {
	Species    SpeciesKey
	LocalityID string
}

// SpeciesHotspotTally is the finalized numerator record for one (species,
// hotspot) pair: detections broken down by month, deduplicated so a checklist
// contributes at most one detection, plus individual-count aggregates.
type SpeciesHotspotTally struct {
	Key     TallyKey
	Monthly [12]int // detections per month, index 0 = January

	// Individual-count aggregates across all rows, including duplicates and
	// presence-only ("X") records, which contribute nothing.
	TotalCount int
	MaxCount   int

	// seen maps each counted checklist ID to its month. A checklist's
	// observations share one date, so overall dedup also dedups within the
	// month bucket; keeping the month makes merges recomputable.
	seen map[string]int
}

// Detections is the total across all months.
func (t *SpeciesHotspotTally) Detections() int {
	n := 0
	for _, m := range t.Monthly {
		n += m
	}
	return n
}

// DetectionAccumulator counts deduplicated detections per (species, hotspot).
// Not safe for concurrent use; shard and Merge instead.
type DetectionAccumulator struct {
	tallies   map[TallyKey]*SpeciesHotspotTally
	finalized bool
}

// NewDetectionAccumulator returns an empty accumulator.
func NewDetectionAccumulator() *DetectionAccumulator {
	return &DetectionAccumulator{tallies: make(map[TallyKey]*SpeciesHotspotTally)}
}

// Add records one qualifying observation. A checklist reporting the same
// species twice contributes a single detection; its individual counts still
// feed the count aggregates, matching how observers split a species across
// sub-lists.
func (a *DetectionAccumulator) Add(o ebird.Observation) {
	if a.finalized {
		panic("accumulate: Add after Finalize")
	}

	key := TallyKey{
		Species:    SpeciesKey{CommonName: o.CommonName, ScientificName: o.ScientificName},
		LocalityID: o.LocalityID,
	}
	t, ok := a.tallies[key]
	if !ok {
		t = &SpeciesHotspotTally{Key: key, seen: make(map[string]int)}
		a.tallies[key] = t
	}

	if o.Count != ebird.CountUnknown {
		t.TotalCount += o.Count
		if o.Count > t.MaxCount {
			t.MaxCount = o.Count
		}
	}

	if _, dup := t.seen[o.ChecklistID]; dup {
		return
	}
	t.seen[o.ChecklistID] = o.Month
	t.Monthly[o.Month-1]++
}

// Merge folds another accumulator into this one. Monthly buckets are rebuilt
// from the union of the dedup maps, so a checklist present in both shards
// still counts once.
func (a *DetectionAccumulator) Merge(other *DetectionAccumulator) {
	if a.finalized {
		panic("accumulate: Merge after Finalize")
	}

	for key, ot := range other.tallies {
		t, ok := a.tallies[key]
		if !ok {
			a.tallies[key] = ot
			continue
		}
		t.TotalCount += ot.TotalCount
		if ot.MaxCount > t.MaxCount {
			t.MaxCount = ot.MaxCount
		}
		for checklistID, month := range ot.seen {
			if _, dup := t.seen[checklistID]; dup {
				continue
			}
			t.seen[checklistID] = month
			t.Monthly[month-1]++
		}
	}
}

// Finalize freezes the accumulator and returns the tally map.
func (a *DetectionAccumulator) Finalize() map[TallyKey]*SpeciesHotspotTally {
	a.finalized = true
	return a.tallies
}
