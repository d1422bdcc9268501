package dga

import (
	"fmt"
	"strings"
)

// FaultLabel is the closed set of diagnostic categories. The numeric value
// is the class index used by the classifiers.
type FaultLabel int

const (
	Normal FaultLabel = iota
	PartialDischarge
	LowEnergyDischarge
	HighEnergyDischarge
	ThermalLow
	ThermalMedium
	ThermalHigh
	DischargeThermal
	Overheating
)

// NumLabels is the size of the FaultLabel enumeration.
const NumLabels = 9

// Labels lists every FaultLabel in class-index order.
var Labels = [NumLabels]FaultLabel{
	Normal, PartialDischarge, LowEnergyDischarge, HighEnergyDischarge,
	ThermalLow, ThermalMedium, ThermalHigh, DischargeThermal, Overheating,
}

var labelCodes = [NumLabels]string{"N", "PD", "D1", "D2", "T1", "T2", "T3", "DT", "S"}

var labelDescriptions = [NumLabels]string{
	"Normal",
	"Partial discharges",
	"Low energy discharges",
	"High energy discharges",
	"Thermal fault < 300 °C",
	"Thermal fault 300-700 °C",
	"Thermal fault > 700 °C",
	"Mixed discharge and thermal fault",
	"Overheating",
}

// severityRank orders labels from normal to the most damaging failure mode.
// Used only to break consensus ties.
var severityRank = [NumLabels]int{
	Normal:              0,
	PartialDischarge:    1,
	Overheating:         2,
	ThermalLow:          3,
	LowEnergyDischarge:  4,
	ThermalMedium:       5,
	DischargeThermal:    6,
	ThermalHigh:         7,
	HighEnergyDischarge: 8,
}

// Valid reports whether l is one of the nine labels.
func (l FaultLabel) Valid() bool {
	return l >= 0 && int(l) < NumLabels
}

// Index returns the class index of the label.
func (l FaultLabel) Index() int { return int(l) }

// String returns the short code, e.g. "D2".
func (l FaultLabel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("FaultLabel(%d)", int(l))
	}
	return labelCodes[l]
}

// Description returns a human readable description.
func (l FaultLabel) Description() string {
	if !l.Valid() {
		return "unknown"
	}
	return labelDescriptions[l]
}

// Severity returns the tie-break rank; higher is more severe.
func (l FaultLabel) Severity() int {
	if !l.Valid() {
		return -1
	}
	return severityRank[l]
}

// MoreSevere reports whether l ranks above other.
func (l FaultLabel) MoreSevere(other FaultLabel) bool {
	return l.Severity() > other.Severity()
}

// ParseFaultLabel accepts the short code in any case.
func ParseFaultLabel(s string) (FaultLabel, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	for i, c := range labelCodes {
		if c == code {
			return FaultLabel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fault label %q", s)
}

// LabelFromIndex maps a class index back to its label.
func LabelFromIndex(i int) (FaultLabel, error) {
	l := FaultLabel(i)
	if !l.Valid() {
		return 0, fmt.Errorf("class index %d out of range", i)
	}
	return l, nil
}

func (l FaultLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid fault label %d", int(l))
	}
	return []byte(labelCodes[l]), nil
}

func (l *FaultLabel) UnmarshalText(b []byte) error {
	parsed, err := ParseFaultLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
