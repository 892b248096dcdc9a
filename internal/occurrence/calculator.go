package occurrence

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/aingebritson/ebird-hotspot-guide/internal/accumulate"
)

// Result is the occurrence of one species at one hotspot, derived from the
// two finalized tally maps. Immutable once computed.
type Result struct {
	Species    accumulate.SpeciesKey
	LocalityID string
	Name       string
	Latitude   float64
	Longitude  float64

	Rate            float64 // exact DetectionCount / TotalChecklists
	DetectionCount  int
	TotalChecklists int
	Confidence      Confidence

	Monthly  map[string]float64 // keys "1".."12", all present
	Seasonal map[string]float64 // keys spring/summer/fall/winter, all present

	// Individual-count aggregates; zero when every record was presence-only.
	AvgCount float64
	MaxCount int
}

// ConsistencyError reports a derived-invariant violation: more detections
// than checklists for a locality. It indicates an upstream dedup or filter
// bug, never bad input data, so it is fatal and carries enough context to
// diagnose.
type ConsistencyError struct {
	Species    accumulate.SpeciesKey
	LocalityID string
	Detections int
	Checklists int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("occurrence: %s (%s) at %s: %d detections exceed %d checklists",
		e.Species.CommonName, e.Species.ScientificName, e.LocalityID, e.Detections, e.Checklists)
}

// Calculate joins finalized checklist and detection tallies into one Result
// per admitted (species, hotspot) pair. Pairs at localities absent from the
// checklist tallies or below the minimum-inclusion threshold are dropped.
// The calculation is pure: same inputs, same results, in deterministic order
// (species common then scientific name, then locality ID).
func Calculate(
	hotspots map[string]*accumulate.HotspotTally,
	detections map[accumulate.TallyKey]*accumulate.SpeciesHotspotTally,
	seasons Seasons,
	th Thresholds,
) ([]Result, error) {
	results := make([]Result, 0, len(detections))

	for key, tally := range detections {
		hotspot, ok := hotspots[key.LocalityID]
		if !ok || hotspot.Checklists < th.MinChecklists {
			continue
		}

		detected := tally.Detections()
		if detected > hotspot.Checklists {
			return nil, &ConsistencyError{
				Species:    key.Species,
				LocalityID: key.LocalityID,
				Detections: detected,
				Checklists: hotspot.Checklists,
			}
		}

		total := float64(hotspot.Checklists)
		r := Result{
			Species:         key.Species,
			LocalityID:      key.LocalityID,
			Name:            hotspot.Name,
			Latitude:        hotspot.Latitude,
			Longitude:       hotspot.Longitude,
			Rate:            float64(detected) / total,
			DetectionCount:  detected,
			TotalChecklists: hotspot.Checklists,
			Confidence:      th.Confidence(hotspot.Checklists),
			Monthly:         make(map[string]float64, 12),
			Seasonal:        make(map[string]float64, len(seasons)),
			MaxCount:        tally.MaxCount,
		}

		// Monthly and seasonal rates share the whole-period denominator. Per
		// month checklist counts are deliberately not tracked; this
		// understates months with few visits but keeps the accumulators to a
		// single additive counter per bucket.
		for m := 1; m <= 12; m++ {
			r.Monthly[strconv.Itoa(m)] = float64(tally.Monthly[m-1]) / total
		}
		for name, months := range seasons {
			n := 0
			for _, m := range months {
				n += tally.Monthly[m-1]
			}
			r.Seasonal[name] = float64(n) / total
		}

		if tally.TotalCount > 0 && detected > 0 {
			r.AvgCount = float64(tally.TotalCount) / float64(detected)
		}

		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Species.CommonName != b.Species.CommonName {
			return a.Species.CommonName < b.Species.CommonName
		}
		if a.Species.ScientificName != b.Species.ScientificName {
			return a.Species.ScientificName < b.Species.ScientificName
		}
		return a.LocalityID < b.LocalityID
	})

	return results, nil
}
