package normative

import (
	"context"
	"fmt"

	"dga-engine/internal/dga"
)

var evaluators = map[Method]func(dga.GasReading) Diagnosis{
	IEEEC57104:    diagnoseIEEE,
	IEC60599:      diagnoseIEC,
	Rogers:        diagnoseRogers,
	Dornenburg:    diagnoseDornenburg,
	DuvalTriangle: diagnoseDuvalTriangle,
	DuvalPentagon: diagnoseDuvalPentagon,
}

// Rules evaluates the methods in-process. The zero value is ready to use.
type Rules struct{}

func NewRules() *Rules {
	return &Rules{}
}

// Evaluate runs one method and returns the full diagnosis.
func (r *Rules) Evaluate(method Method, reading dga.GasReading) (Diagnosis, error) {
	eval, ok := evaluators[method]
	if !ok {
		return Diagnosis{}, fmt.Errorf("unknown normative method %q", method)
	}
	if err := reading.Validate(); err != nil {
		return Diagnosis{}, err
	}
	return eval(reading), nil
}

func (r *Rules) Diagnose(ctx context.Context, method Method, reading dga.GasReading) (dga.FaultLabel, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d, err := r.Evaluate(method, reading)
	if err != nil {
		return 0, err
	}
	return d.Label, nil
}

// EvaluateAll runs every method in Methods order.
func (r *Rules) EvaluateAll(reading dga.GasReading) ([]Diagnosis, error) {
	out := make([]Diagnosis, 0, len(Methods))
	for _, m := range Methods {
		d, err := r.Evaluate(m, reading)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		out = append(out, d)
	}
	return out, nil
}
