package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dga-engine/internal/dga"
)

func counts(pairs map[dga.FaultLabel]int) [dga.NumLabels]int {
	var c [dga.NumLabels]int
	for l, n := range pairs {
		c[l] = n
	}
	return c
}

func TestEffectiveFolds(t *testing.T) {
	tests := []struct {
		name      string
		counts    [dga.NumLabels]int
		requested int
		want      int
		wantErr   error
	}{
		{"requested fits", counts(map[dga.FaultLabel]int{dga.Normal: 50, dga.ThermalLow: 10}), 5, 5, nil},
		{"capped by rarest class", counts(map[dga.FaultLabel]int{dga.Normal: 50, dga.PartialDischarge: 2}), 5, 2, nil},
		{"rarest has one example", counts(map[dga.FaultLabel]int{dga.Normal: 50, dga.PartialDischarge: 1}), 5, 0, dga.ErrInsufficientData},
		{"single class", counts(map[dga.FaultLabel]int{dga.Normal: 50}), 5, 0, dga.ErrInsufficientData},
		{"empty", counts(nil), 5, 0, dga.ErrInsufficientData},
		{"one fold requested", counts(map[dga.FaultLabel]int{dga.Normal: 50, dga.ThermalLow: 10}), 1, 0, ErrInvalidFolds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EffectiveFolds(tt.counts, tt.requested)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveFoldsNamesLimitingClass(t *testing.T) {
	_, err := EffectiveFolds(counts(map[dga.FaultLabel]int{dga.Normal: 50, dga.HighEnergyDischarge: 1}), 5)

	var insufficient *dga.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	require.NotNil(t, insufficient.Label)
	assert.Equal(t, dga.HighEnergyDischarge, *insufficient.Label)
	assert.Equal(t, 5, insufficient.RequestedFolds)
	assert.Equal(t, 1, insufficient.EffectiveFolds)
	assert.Contains(t, err.Error(), "class=D2")
}

func TestStratifiedFoldsSpreadMinorityClasses(t *testing.T) {
	var y []int
	for i := 0; i < 80; i++ {
		y = append(y, int(dga.Normal))
	}
	for _, l := range []dga.FaultLabel{dga.PartialDischarge, dga.LowEnergyDischarge, dga.ThermalLow, dga.ThermalMedium} {
		for i := 0; i < 5; i++ {
			y = append(y, int(l))
		}
	}

	folds := stratifiedFolds(y, 5, 7)
	require.Len(t, folds, 5)

	seen := make(map[int]int)
	for f, fold := range folds {
		var perClass [dga.NumLabels]int
		for _, idx := range fold {
			seen[idx]++
			perClass[y[idx]]++
		}
		minority := perClass[dga.PartialDischarge] + perClass[dga.LowEnergyDischarge] +
			perClass[dga.ThermalLow] + perClass[dga.ThermalMedium]
		assert.Equal(t, 4, minority, "fold %d", f)
		assert.Equal(t, 16, perClass[dga.Normal], "fold %d", f)
		for _, l := range []dga.FaultLabel{dga.PartialDischarge, dga.LowEnergyDischarge, dga.ThermalLow, dga.ThermalMedium} {
			assert.Equal(t, 1, perClass[l], "fold %d class %s", f, l)
		}
	}
	assert.Len(t, seen, len(y))
	for idx, n := range seen {
		assert.Equal(t, 1, n, "index %d", idx)
	}
}

func TestStratifiedFoldsDeterministic(t *testing.T) {
	_, y := clusteredData(map[int]int{0: 20, 3: 7, 4: 9}, 1)
	assert.Equal(t, stratifiedFolds(y, 3, 99), stratifiedFolds(y, 3, 99))
	assert.NotEqual(t, stratifiedFolds(y, 3, 99), stratifiedFolds(y, 3, 100))
}

func TestTrainIndices(t *testing.T) {
	assert.Equal(t, []int{0, 2, 4}, trainIndices(5, []int{1, 3}))
	assert.Equal(t, []int{}, trainIndices(2, []int{0, 1}))
}

func TestUnitSeedDistinct(t *testing.T) {
	seen := make(map[int64]bool)
	for c := 0; c < 4; c++ {
		for f := 0; f < 10; f++ {
			s := unitSeed(42, c, f)
			assert.GreaterOrEqual(t, s, int64(0))
			assert.False(t, seen[s], "duplicate seed for candidate %d fold %d", c, f)
			seen[s] = true
		}
	}
	assert.Equal(t, unitSeed(42, 1, 2), unitSeed(42, 1, 2))
}
