package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storm-decay-lab/internal/domain"
)

const day = 24 * time.Hour

func TestMerge_TenDayGap(t *testing.T) {
	ws := []domain.Window{
		{Start: t0, End: t0.Add(3 * day)},
		{Start: t0.Add(10 * day), End: t0.Add(12 * day)},
	}

	got := Merge(ws, 10*day)

	require.Len(t, got, 1)
	assert.Equal(t, t0, got[0].Start)
	assert.Equal(t, t0.Add(12*day), got[0].End)
	assert.Equal(t, 12*day, got[0].Duration)
}

func TestDerive_PercentileThreshold(t *testing.T) {
	// Hourly values 0..99 then 0; p90 of the 101 values is 89.
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	values = append(values, 0) // closes the final excursion
	s := mustSeries(t, values...)

	got, err := Derive(s, Set{
		Label:      "storm_p90",
		Mode:       domain.ModeAbove,
		Percentile: 90,
		MergeGap:   10 * day,
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	w := got[0]
	assert.Equal(t, "storm_p90", w.Label)
	assert.InDelta(t, 89, w.Threshold, 1e-9)
	assert.Equal(t, hour(90), w.Start)
	assert.Equal(t, hour(100), w.End)
	assert.Equal(t, 10*time.Hour, w.Duration)
	assert.Equal(t, domain.ModeAbove, w.Mode)
}

func TestDerive_FixedThresholdWithMinDuration(t *testing.T) {
	// Two quiet stretches of 3h and 6h below 10.
	s := mustSeries(t, 50, 1, 1, 1, 50, 50, 2, 2, 2, 2, 2, 2, 50)

	got, err := Derive(s, Set{
		Label:       "quiet",
		Mode:        domain.ModeBelow,
		Threshold:   10,
		MinDuration: 4 * time.Hour,
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, hour(6), got[0].Start)
	assert.Equal(t, hour(12), got[0].End)
}

func TestDerive_EmptyIndex(t *testing.T) {
	_, err := Derive(mustSeries(t), Set{Label: "x", Mode: domain.ModeAbove, Percentile: 99})
	assert.Error(t, err)
}

func TestSet_Validate(t *testing.T) {
	tests := []struct {
		name string
		set  Set
		ok   bool
	}{
		{"valid", Set{Label: "a", Mode: domain.ModeAbove, Percentile: 99}, true},
		{"missing label", Set{Mode: domain.ModeAbove}, false},
		{"bad mode", Set{Label: "a", Mode: "up"}, false},
		{"bad percentile", Set{Label: "a", Mode: domain.ModeBelow, Percentile: 120}, false},
		{"negative gap", Set{Label: "a", Mode: domain.ModeBelow, MergeGap: -time.Hour}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
