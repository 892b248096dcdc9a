package occurrence

import (
	"sort"

	"github.com/aingebritson/ebird-hotspot-guide/internal/accumulate"
)

// Ranked is a Result with its ordinal position in a guide. Ranks start at 1
// with no gaps and no sharing, even between equal rates.
type Ranked struct {
	Rank   int
	Result Result
}

// SpeciesGuide lists every admitted hotspot for one species, best first.
type SpeciesGuide struct {
	Species         accumulate.SpeciesKey
	TotalDetections int
	HighestRate     float64
	Hotspots        []Ranked
}

// HotspotGuide is the inverse view: every species detected at one hotspot.
type HotspotGuide struct {
	LocalityID      string
	Name            string
	Latitude        float64
	Longitude       float64
	TotalChecklists int
	Confidence      Confidence
	Species         []Ranked
}

// AssembleSpecies groups results by species and ranks each species' hotspots
// by rate descending, ties broken by ascending locality ID. The tie-break
// makes output reproducible across runs regardless of input row order.
// Guides are returned sorted by common then scientific name.
func AssembleSpecies(results []Result) []SpeciesGuide {
	bySpecies := make(map[accumulate.SpeciesKey][]Result)
	for _, r := range results {
		bySpecies[r.Species] = append(bySpecies[r.Species], r)
	}

	guides := make([]SpeciesGuide, 0, len(bySpecies))
	for key, rs := range bySpecies {
		sort.Slice(rs, func(i, j int) bool {
			if rs[i].Rate != rs[j].Rate {
				return rs[i].Rate > rs[j].Rate
			}
			return rs[i].LocalityID < rs[j].LocalityID
		})

		g := SpeciesGuide{Species: key, Hotspots: make([]Ranked, len(rs))}
		for i, r := range rs {
			g.Hotspots[i] = Ranked{Rank: i + 1, Result: r}
			g.TotalDetections += r.DetectionCount
			if r.Rate > g.HighestRate {
				g.HighestRate = r.Rate
			}
		}
		guides = append(guides, g)
	}

	sort.Slice(guides, func(i, j int) bool {
		a, b := guides[i].Species, guides[j].Species
		if a.CommonName != b.CommonName {
			return a.CommonName < b.CommonName
		}
		return a.ScientificName < b.ScientificName
	})
	return guides
}

// AssembleHotspots groups results by locality and ranks each hotspot's
// species by rate descending, ties broken by ascending common name. Guides
// are returned sorted by locality ID.
func AssembleHotspots(results []Result) []HotspotGuide {
	byLocality := make(map[string][]Result)
	for _, r := range results {
		byLocality[r.LocalityID] = append(byLocality[r.LocalityID], r)
	}

	guides := make([]HotspotGuide, 0, len(byLocality))
	for id, rs := range byLocality {
		sort.Slice(rs, func(i, j int) bool {
			if rs[i].Rate != rs[j].Rate {
				return rs[i].Rate > rs[j].Rate
			}
			return rs[i].Species.CommonName < rs[j].Species.CommonName
		})

		g := HotspotGuide{
			LocalityID:      id,
			Name:            rs[0].Name,
			Latitude:        rs[0].Latitude,
			Longitude:       rs[0].Longitude,
			TotalChecklists: rs[0].TotalChecklists,
			Confidence:      rs[0].Confidence,
			Species:         make([]Ranked, len(rs)),
		}
		for i, r := range rs {
			g.Species[i] = Ranked{Rank: i + 1, Result: r}
		}
		guides = append(guides, g)
	}

	sort.Slice(guides, func(i, j int) bool {
		return guides[i].LocalityID < guides[j].LocalityID
	})
	return guides
}
