package occurrence_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aingebritson/ebird-hotspot-guide/internal/accumulate"
	"github.com/aingebritson/ebird-hotspot-guide/internal/ebird"
	"github.com/aingebritson/ebird-hotspot-guide/internal/occurrence"
)

// buildHotspot registers n distinct complete checklists at locID.
func buildHotspot(a *accumulate.ChecklistAccumulator, locID string, n int) {
	for i := 0; i < n; i++ {
		a.Add(ebird.Checklist{
			ChecklistID:  fmt.Sprintf("%s-S%d", locID, i),
			LocalityID:   locID,
			LocalityName: "Hotspot " + locID,
			Latitude:     42.0,
			Longitude:    -83.0,
			Month:        6,
		})
	}
}

// detect registers detections of species common at locID on the numbered
// checklists, one per month entry.
func detect(a *accumulate.DetectionAccumulator, common, locID string, months ...int) {
	for i, m := range months {
		a.Add(ebird.Observation{
			ChecklistID:    fmt.Sprintf("%s-S%d", locID, i),
			LocalityID:     locID,
			CommonName:     common,
			ScientificName: "Sci " + common,
			Month:          m,
			Count:          1,
		})
	}
}

func TestCalculate_BlueGrosbeakExample(t *testing.T) {
	ca := accumulate.NewChecklistAccumulator()
	buildHotspot(ca, "L1", 10)

	da := accumulate.NewDetectionAccumulator()
	detect(da, "Blue Grosbeak", "L1", 6, 6, 6, 7, 7)

	results, err := occurrence.Calculate(ca.Finalize(), da.Finalize(),
		occurrence.DefaultSeasons(), occurrence.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 0.5, r.Rate)
	assert.Equal(t, 5, r.DetectionCount)
	assert.Equal(t, 10, r.TotalChecklists)
	assert.Equal(t, occurrence.ConfidenceLow, r.Confidence)
	assert.InDelta(t, 0.3, r.Monthly["6"], 1e-12)
	assert.InDelta(t, 0.2, r.Monthly["7"], 1e-12)
	for m := 1; m <= 12; m++ {
		if m == 6 || m == 7 {
			continue
		}
		assert.Zero(t, r.Monthly[fmt.Sprint(m)], "month %d", m)
	}
	// Months 6 and 7 both map to summer in the default partition.
	assert.InDelta(t, 0.5, r.Seasonal["summer"], 1e-12)
	assert.Zero(t, r.Seasonal["spring"])
	assert.Zero(t, r.Seasonal["fall"])
	assert.Zero(t, r.Seasonal["winter"])
}

func TestCalculate_ConfidenceBoundaries(t *testing.T) {
	tests := []struct {
		checklists int
		want       occurrence.Confidence
		excluded   bool
	}{
		{100, occurrence.ConfidenceHigh, false},
		{99, occurrence.ConfidenceMedium, false},
		{30, occurrence.ConfidenceMedium, false},
		{29, occurrence.ConfidenceLow, false},
		{10, occurrence.ConfidenceLow, false},
		{9, "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d checklists", tt.checklists), func(t *testing.T) {
			ca := accumulate.NewChecklistAccumulator()
			buildHotspot(ca, "L1", tt.checklists)

			da := accumulate.NewDetectionAccumulator()
			detect(da, "Blue Grosbeak", "L1", 6)

			results, err := occurrence.Calculate(ca.Finalize(), da.Finalize(),
				occurrence.DefaultSeasons(), occurrence.DefaultThresholds())
			require.NoError(t, err)

			if tt.excluded {
				assert.Empty(t, results)
				return
			}
			require.Len(t, results, 1)
			assert.Equal(t, tt.want, results[0].Confidence)
		})
	}
}

func TestCalculate_DropsLocalitiesWithoutChecklistTally(t *testing.T) {
	ca := accumulate.NewChecklistAccumulator()
	buildHotspot(ca, "L1", 20)

	da := accumulate.NewDetectionAccumulator()
	detect(da, "Blue Grosbeak", "L1", 6)
	detect(da, "Blue Grosbeak", "L9", 6) // no checklist tally for L9

	results, err := occurrence.Calculate(ca.Finalize(), da.Finalize(),
		occurrence.DefaultSeasons(), occurrence.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "L1", results[0].LocalityID)
}

func TestCalculate_ConsistencyFault(t *testing.T) {
	ca := accumulate.NewChecklistAccumulator()
	buildHotspot(ca, "L1", 10)

	// Detections from checklists the sampling pass never saw push the
	// numerator past the denominator. That is an upstream bug, not input
	// noise, and must fail loudly rather than clamp.
	da := accumulate.NewDetectionAccumulator()
	for i := 0; i < 11; i++ {
		da.Add(ebird.Observation{
			ChecklistID:    fmt.Sprintf("ghost-%d", i),
			LocalityID:     "L1",
			CommonName:     "Blue Grosbeak",
			ScientificName: "Passerina caerulea",
			Month:          6,
			Count:          1,
		})
	}

	_, err := occurrence.Calculate(ca.Finalize(), da.Finalize(),
		occurrence.DefaultSeasons(), occurrence.DefaultThresholds())
	require.Error(t, err)

	var cerr *occurrence.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "L1", cerr.LocalityID)
	assert.Equal(t, 11, cerr.Detections)
	assert.Equal(t, 10, cerr.Checklists)
	assert.Equal(t, "Blue Grosbeak", cerr.Species.CommonName)
}

func TestCalculate_MonthlySumsReconstructDetectionCount(t *testing.T) {
	ca := accumulate.NewChecklistAccumulator()
	buildHotspot(ca, "L1", 50)

	da := accumulate.NewDetectionAccumulator()
	detect(da, "Blue Grosbeak", "L1", 1, 3, 3, 6, 9, 12, 12, 12)

	results, err := occurrence.Calculate(ca.Finalize(), da.Finalize(),
		occurrence.DefaultSeasons(), occurrence.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]

	var monthlySum, seasonalSum float64
	for _, v := range r.Monthly {
		monthlySum += v
	}
	for _, v := range r.Seasonal {
		seasonalSum += v
	}
	total := float64(r.TotalChecklists)
	assert.InDelta(t, float64(r.DetectionCount), monthlySum*total, 1e-9)
	assert.InDelta(t, float64(r.DetectionCount), seasonalSum*total, 1e-9)
	assert.Equal(t, float64(r.DetectionCount)/total, r.Rate)
}

func TestCalculate_AverageAndMaxCounts(t *testing.T) {
	ca := accumulate.NewChecklistAccumulator()
	buildHotspot(ca, "L1", 10)

	da := accumulate.NewDetectionAccumulator()
	da.Add(ebird.Observation{ChecklistID: "L1-S0", LocalityID: "L1", CommonName: "Blue Grosbeak", ScientificName: "Passerina caerulea", Month: 6, Count: 4})
	da.Add(ebird.Observation{ChecklistID: "L1-S1", LocalityID: "L1", CommonName: "Blue Grosbeak", ScientificName: "Passerina caerulea", Month: 6, Count: ebird.CountUnknown})
	da.Add(ebird.Observation{ChecklistID: "L1-S2", LocalityID: "L1", CommonName: "Blue Grosbeak", ScientificName: "Passerina caerulea", Month: 7, Count: 2})

	results, err := occurrence.Calculate(ca.Finalize(), da.Finalize(),
		occurrence.DefaultSeasons(), occurrence.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 3, results[0].DetectionCount)
	assert.Equal(t, 4, results[0].MaxCount)
	assert.InDelta(t, 2.0, results[0].AvgCount, 1e-12) // 6 individuals / 3 detections
}

func TestCalculate_DeterministicOrder(t *testing.T) {
	ca := accumulate.NewChecklistAccumulator()
	buildHotspot(ca, "L1", 10)
	buildHotspot(ca, "L2", 10)

	da := accumulate.NewDetectionAccumulator()
	detect(da, "Wood Thrush", "L2", 6)
	detect(da, "Blue Grosbeak", "L2", 6)
	detect(da, "Blue Grosbeak", "L1", 6)

	results, err := occurrence.Calculate(ca.Finalize(), da.Finalize(),
		occurrence.DefaultSeasons(), occurrence.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Blue Grosbeak", results[0].Species.CommonName)
	assert.Equal(t, "L1", results[0].LocalityID)
	assert.Equal(t, "Blue Grosbeak", results[1].Species.CommonName)
	assert.Equal(t, "L2", results[1].LocalityID)
	assert.Equal(t, "Wood Thrush", results[2].Species.CommonName)
}
