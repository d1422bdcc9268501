package ml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dga-engine/internal/dga"
	"dga-engine/internal/normative"
)

var reading = dga.GasReading{H2: 100, CH4: 120, C2H6: 65, C2H4: 50, C2H2: 1, CO: 350, CO2: 2500, O2: 8000, N2: 50000}

func TestConsensusLabeler(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		labels map[normative.Method]dga.FaultLabel
		errs   map[normative.Method]error
		want   dga.FaultLabel
	}{
		{
			name: "clear majority",
			labels: map[normative.Method]dga.FaultLabel{
				normative.IEEEC57104:    dga.HighEnergyDischarge,
				normative.IEC60599:      dga.HighEnergyDischarge,
				normative.Rogers:        dga.HighEnergyDischarge,
				normative.Dornenburg:    dga.HighEnergyDischarge,
				normative.DuvalTriangle: dga.ThermalLow,
				normative.DuvalPentagon: dga.PartialDischarge,
			},
			want: dga.HighEnergyDischarge,
		},
		{
			name: "tie goes to the more severe label",
			labels: map[normative.Method]dga.FaultLabel{
				normative.IEEEC57104:    dga.ThermalLow,
				normative.IEC60599:      dga.ThermalLow,
				normative.Rogers:        dga.ThermalLow,
				normative.Dornenburg:    dga.LowEnergyDischarge,
				normative.DuvalTriangle: dga.LowEnergyDischarge,
				normative.DuvalPentagon: dga.LowEnergyDischarge,
			},
			want: dga.LowEnergyDischarge,
		},
		{
			name: "failed methods are ignored",
			labels: map[normative.Method]dga.FaultLabel{
				normative.Rogers:        dga.ThermalHigh,
				normative.Dornenburg:    dga.ThermalHigh,
				normative.DuvalTriangle: dga.HighEnergyDischarge,
				normative.DuvalPentagon: dga.HighEnergyDischarge,
			},
			errs: map[normative.Method]error{
				normative.IEEEC57104: boom,
				normative.IEC60599:   boom,
			},
			want: dga.HighEnergyDischarge,
		},
		{
			name: "single surviving vote",
			labels: map[normative.Method]dga.FaultLabel{
				normative.DuvalPentagon: dga.Overheating,
			},
			errs: map[normative.Method]error{
				normative.IEEEC57104:    boom,
				normative.IEC60599:      boom,
				normative.Rogers:        boom,
				normative.Dornenburg:    boom,
				normative.DuvalTriangle: boom,
			},
			want: dga.Overheating,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := &scriptedRules{labels: tt.labels, errs: tt.errs}
			metrics := &MockMetrics{}
			l := NewConsensusLabeler(rules, metrics)

			got, votes, err := l.Label(context.Background(), reading)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, votes, len(normative.Methods))
			for _, m := range normative.Methods {
				assert.Equal(t, 1, rules.callsBy[m], "method %s consulted once", m)
			}
			assert.Len(t, metrics.voteFailures, len(tt.errs))
		})
	}
}

func TestConsensusLabelerNoVotes(t *testing.T) {
	errs := make(map[normative.Method]error)
	for _, m := range normative.Methods {
		errs[m] = errors.New("unavailable")
	}
	metrics := &MockMetrics{}
	l := NewConsensusLabeler(&scriptedRules{errs: errs}, metrics)

	_, votes, err := l.Label(context.Background(), reading)
	require.ErrorIs(t, err, dga.ErrNoVotes)
	for _, v := range votes {
		assert.Error(t, v.Err)
	}
	for _, m := range normative.Methods {
		assert.Equal(t, 1, metrics.voteFailures[string(m)])
	}
}

func TestConsensusLabelerInvalidLabelIsAFailure(t *testing.T) {
	labels := make(map[normative.Method]dga.FaultLabel)
	for _, m := range normative.Methods {
		labels[m] = dga.FaultLabel(42)
	}
	labels[normative.Rogers] = dga.ThermalMedium
	metrics := &MockMetrics{}
	l := NewConsensusLabeler(&scriptedRules{labels: labels}, metrics)

	got, _, err := l.Label(context.Background(), reading)
	require.NoError(t, err)
	assert.Equal(t, dga.ThermalMedium, got)
	assert.Len(t, metrics.voteFailures, len(normative.Methods)-1)
}

func TestConsensusLabelerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewConsensusLabeler(dominantGasRules{}, nil).Label(ctx, reading)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsensusWithRealRules(t *testing.T) {
	l := NewConsensusLabeler(normative.NewRules(), nil)
	label, votes, err := l.Label(context.Background(), reading)
	require.NoError(t, err)
	assert.True(t, label.Valid())

	var counts [dga.NumLabels]int
	for _, v := range votes {
		if v.Err == nil {
			counts[v.Label]++
		}
	}
	for _, other := range dga.Labels {
		assert.LessOrEqual(t, counts[other], counts[label])
	}
}

func TestConsensusEmpty(t *testing.T) {
	_, ok := Consensus(nil)
	assert.False(t, ok)
}
