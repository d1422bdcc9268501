// Package normative implements the six rule-based DGA interpretation methods
// used to label historical readings, and a remote client for a service that
// exposes the same verdicts over HTTP.
package normative

import (
	"context"
	"fmt"
	"strings"

	"dga-engine/internal/dga"
)

// Method identifies one normative interpretation method.
type Method string

const (
	IEEEC57104    Method = "ieee_c57_104"
	IEC60599      Method = "iec_60599"
	Rogers        Method = "rogers"
	Dornenburg    Method = "dornenburg"
	DuvalTriangle Method = "duval_triangle"
	DuvalPentagon Method = "duval_pentagon"
)

// Methods is the fixed set consulted for every consensus label, in report order.
var Methods = []Method{IEEEC57104, IEC60599, Rogers, Dornenburg, DuvalTriangle, DuvalPentagon}

var methodNames = map[Method]string{
	IEEEC57104:    "IEEE C57.104-2019",
	IEC60599:      "IEC 60599:2022",
	Rogers:        "Rogers ratios",
	Dornenburg:    "Dornenburg ratios",
	DuvalTriangle: "Duval triangle 1",
	DuvalPentagon: "Duval pentagon 1",
}

// DisplayName returns the standard's printed name.
func (m Method) DisplayName() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return string(m)
}

// ParseMethod accepts the identifier in any case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := methodNames[m]; !ok {
		return "", fmt.Errorf("unknown normative method %q", s)
	}
	return m, nil
}

// Service returns one method's verdict for a reading. Implementations must be
// safe for concurrent use.
type Service interface {
	Diagnose(ctx context.Context, method Method, reading dga.GasReading) (dga.FaultLabel, error)
}

// Diagnosis is a verdict with the intermediate values that produced it.
type Diagnosis struct {
	Method      Method             `json:"method"`
	Label       dga.FaultLabel     `json:"label"`
	Description string             `json:"description"`
	Details     map[string]float64 `json:"details,omitempty"`
}
