package occurrence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aingebritson/ebird-hotspot-guide/internal/occurrence"
)

func TestDefaultSeasonsIsValid(t *testing.T) {
	require.NoError(t, occurrence.DefaultSeasons().Validate())
}

func TestSeasonsValidate(t *testing.T) {
	tests := []struct {
		name    string
		seasons occurrence.Seasons
		wantErr string
	}{
		{
			name: "missing month",
			seasons: occurrence.Seasons{
				"spring": {3, 4, 5},
				"summer": {6, 7},
				"fall":   {8, 9, 10, 11},
				"winter": {12, 1}, // February unassigned
			},
			wantErr: "month 2 not assigned",
		},
		{
			name: "duplicate month",
			seasons: occurrence.Seasons{
				"spring": {3, 4, 5, 6},
				"summer": {6, 7},
				"fall":   {8, 9, 10, 11},
				"winter": {12, 1, 2},
			},
			wantErr: "month 6 assigned to both",
		},
		{
			name: "unknown season name",
			seasons: occurrence.Seasons{
				"spring": {3, 4, 5},
				"summer": {6, 7},
				"autumn": {8, 9, 10, 11},
				"winter": {12, 1, 2},
			},
			wantErr: "missing season",
		},
		{
			name: "invalid month number",
			seasons: occurrence.Seasons{
				"spring": {3, 4, 5},
				"summer": {6, 7},
				"fall":   {8, 9, 10, 11, 13},
				"winter": {12, 1, 2},
			},
			wantErr: "invalid month 13",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seasons.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, occurrence.DefaultThresholds().Validate())

	bad := occurrence.Thresholds{MinChecklists: 10, MediumMin: 100, HighMin: 100}
	require.Error(t, bad.Validate())

	bad = occurrence.Thresholds{MinChecklists: 0, MediumMin: 30, HighMin: 100}
	require.Error(t, bad.Validate())

	bad = occurrence.Thresholds{MinChecklists: 50, MediumMin: 30, HighMin: 100}
	require.Error(t, bad.Validate())
}

func TestThresholdsConfidence(t *testing.T) {
	th := occurrence.DefaultThresholds()
	assert.Equal(t, occurrence.ConfidenceHigh, th.Confidence(100))
	assert.Equal(t, occurrence.ConfidenceMedium, th.Confidence(99))
	assert.Equal(t, occurrence.ConfidenceMedium, th.Confidence(30))
	assert.Equal(t, occurrence.ConfidenceLow, th.Confidence(29))
	assert.Equal(t, occurrence.ConfidenceLow, th.Confidence(10))
}
