package ml

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
	"dga-engine/internal/normative"
)

// Vote is one normative method's verdict on a reading. Err is set when the
// method could not produce one.
type Vote struct {
	Method normative.Method `json:"method"`
	Label  dga.FaultLabel   `json:"label"`
	Err    error            `json:"-"`
}

// ConsensusLabeler derives a training label from the majority verdict of the
// normative methods.
type ConsensusLabeler struct {
	service normative.Service
	methods []normative.Method
	metrics MetricsInterface
}

func NewConsensusLabeler(service normative.Service, metrics MetricsInterface) *ConsensusLabeler {
	return &ConsensusLabeler{
		service: service,
		methods: normative.Methods,
		metrics: orNoop(metrics),
	}
}

// Label consults every method once. Failed methods are excluded from the
// count; if none succeeds it returns dga.ErrNoVotes.
func (l *ConsensusLabeler) Label(ctx context.Context, reading dga.GasReading) (dga.FaultLabel, []Vote, error) {
	votes := make([]Vote, 0, len(l.methods))
	for _, m := range l.methods {
		label, err := l.service.Diagnose(ctx, m, reading)
		if err == nil && !label.Valid() {
			err = fmt.Errorf("method returned invalid label %d", int(label))
		}
		if err != nil {
			l.metrics.VoteFailuresInc(string(m))
			log.Debug().Err(err).Str("method", string(m)).Msg("Normative method failed")
		}
		votes = append(votes, Vote{Method: m, Label: label, Err: err})
	}

	label, ok := Consensus(votes)
	if !ok {
		if err := ctx.Err(); err != nil {
			return 0, votes, err
		}
		return 0, votes, dga.ErrNoVotes
	}
	return label, votes, nil
}

// Consensus returns the most frequent label among successful votes. Ties go
// to the more severe label. The boolean is false when no vote succeeded.
func Consensus(votes []Vote) (dga.FaultLabel, bool) {
	var counts [dga.NumLabels]int
	total := 0
	for _, v := range votes {
		if v.Err != nil || !v.Label.Valid() {
			continue
		}
		counts[v.Label]++
		total++
	}
	if total == 0 {
		return 0, false
	}

	best := dga.FaultLabel(-1)
	for _, label := range dga.Labels {
		c := counts[label]
		if c == 0 {
			continue
		}
		if best < 0 || c > counts[best] || (c == counts[best] && label.MoreSevere(best)) {
			best = label
		}
	}
	return best, true
}
