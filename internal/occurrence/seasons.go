// Package occurrence computes occurrence rates from finalized tallies and
// assembles the ranked views the output writer serializes.
package occurrence

import (
	"fmt"
	"strings"
)

// SeasonNames are the four season keys, in display order.
var SeasonNames = []string{"spring", "summer", "fall", "winter"}

// Seasons maps each season name to its month numbers (1..12). A valid value
// is a total partition: every month in exactly one season.
type Seasons map[string][]int

// DefaultSeasons returns the northern-hemisphere birding partition used by
// the guide: meteorological spring and fall stretched to match migration.
func DefaultSeasons() Seasons {
	return Seasons{
		"spring": {3, 4, 5},
		"summer": {6, 7},
		"fall":   {8, 9, 10, 11},
		"winter": {12, 1, 2},
	}
}

// Validate checks that the partition uses exactly the four known season names
// and covers every month exactly once.
func (s Seasons) Validate() error {
	if len(s) != len(SeasonNames) {
		return fmt.Errorf("seasons: expected %d seasons (%s), got %d",
			len(SeasonNames), strings.Join(SeasonNames, ", "), len(s))
	}

	covered := make(map[int]string, 12)
	for _, name := range SeasonNames {
		months, ok := s[name]
		if !ok {
			return fmt.Errorf("seasons: missing season %q", name)
		}
		for _, m := range months {
			if m < 1 || m > 12 {
				return fmt.Errorf("seasons: %s contains invalid month %d", name, m)
			}
			if prev, dup := covered[m]; dup {
				return fmt.Errorf("seasons: month %d assigned to both %s and %s", m, prev, name)
			}
			covered[m] = name
		}
	}

	for m := 1; m <= 12; m++ {
		if _, ok := covered[m]; !ok {
			return fmt.Errorf("seasons: month %d not assigned to any season", m)
		}
	}
	return nil
}

// Thresholds are the checklist-count cutoffs governing inclusion and the
// confidence tier. Confidence reflects sample size only, not variance.
type Thresholds struct {
	MinChecklists int // below this a hotspot is excluded entirely
	MediumMin     int
	HighMin       int
}

// DefaultThresholds matches the published guide: include at 10 checklists,
// medium confidence at 30, high at 100.
func DefaultThresholds() Thresholds {
	return Thresholds{MinChecklists: 10, MediumMin: 30, HighMin: 100}
}

// Validate rejects threshold sets that cannot order the tiers.
func (t Thresholds) Validate() error {
	if t.MinChecklists < 1 {
		return fmt.Errorf("thresholds: minimum checklists must be at least 1, got %d", t.MinChecklists)
	}
	if t.MediumMin >= t.HighMin {
		return fmt.Errorf("thresholds: medium minimum (%d) must be below high minimum (%d)", t.MediumMin, t.HighMin)
	}
	if t.MinChecklists > t.MediumMin {
		return fmt.Errorf("thresholds: minimum checklists (%d) must not exceed medium minimum (%d)", t.MinChecklists, t.MediumMin)
	}
	return nil
}

// Confidence is the sample-size reliability tier attached to each result.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Confidence assigns the tier for a checklist count that already cleared the
// minimum-inclusion threshold.
func (t Thresholds) Confidence(checklists int) Confidence {
	switch {
	case checklists >= t.HighMin:
		return ConfidenceHigh
	case checklists >= t.MediumMin:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
