// Package dga holds the domain model for dissolved gas analysis of oil-filled
// power transformers: gas readings, fault labels, historical samples and the
// error taxonomy shared by the storage, normative and ml packages.
package dga

import (
	"fmt"
	"math"
)

// NumGases is the length of every feature vector derived from a GasReading.
const NumGases = 9

// GasNames lists the gases in canonical feature order.
var GasNames = [NumGases]string{"h2", "ch4", "c2h6", "c2h4", "c2h2", "co", "co2", "o2", "n2"}

// GasLabels are display names indexed like GasNames.
var GasLabels = [NumGases]string{
	"Hydrogen (H2)",
	"Methane (CH4)",
	"Ethane (C2H6)",
	"Ethylene (C2H4)",
	"Acetylene (C2H2)",
	"Carbon monoxide (CO)",
	"Carbon dioxide (CO2)",
	"Oxygen (O2)",
	"Nitrogen (N2)",
}

// GasReading is one chromatography result in ppm. It is a value type:
// two readings with equal concentrations are equal.
type GasReading struct {
	H2   float64 `json:"h2"`
	CH4  float64 `json:"ch4"`
	C2H6 float64 `json:"c2h6"`
	C2H4 float64 `json:"c2h4"`
	C2H2 float64 `json:"c2h2"`
	CO   float64 `json:"co"`
	CO2  float64 `json:"co2"`
	O2   float64 `json:"o2"`
	N2   float64 `json:"n2"`
}

// Features returns the reading as a feature vector in GasNames order.
func (r GasReading) Features() []float64 {
	return []float64{r.H2, r.CH4, r.C2H6, r.C2H4, r.C2H2, r.CO, r.CO2, r.O2, r.N2}
}

// ReadingFromFeatures is the inverse of Features.
func ReadingFromFeatures(f []float64) (GasReading, error) {
	if len(f) != NumGases {
		return GasReading{}, fmt.Errorf("feature vector has %d values, want %d", len(f), NumGases)
	}
	return GasReading{
		H2: f[0], CH4: f[1], C2H6: f[2], C2H4: f[3], C2H2: f[4],
		CO: f[5], CO2: f[6], O2: f[7], N2: f[8],
	}, nil
}

// Validate rejects negative, NaN and infinite concentrations.
func (r GasReading) Validate() error {
	for i, v := range r.Features() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidGasValue, GasNames[i])
		}
		if v < 0 {
			return fmt.Errorf("%w: %s cannot be negative (got %g)", ErrInvalidGasValue, GasNames[i], v)
		}
	}
	return nil
}

// TDCG is the total dissolved combustible gas (H2+CH4+C2H6+C2H4+C2H2+CO).
func (r GasReading) TDCG() float64 {
	return r.H2 + r.CH4 + r.C2H6 + r.C2H4 + r.C2H2 + r.CO
}

// TotalHydrocarbons is CH4+C2H6+C2H4+C2H2.
func (r GasReading) TotalHydrocarbons() float64 {
	return r.CH4 + r.C2H6 + r.C2H4 + r.C2H2
}
