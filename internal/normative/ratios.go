package normative

import "dga-engine/internal/dga"

// ratioOverflow stands in for a ratio whose denominator is zero.
const ratioOverflow = 999.0

func safeRatio(num, den float64) float64 {
	if den <= 0 {
		if num > 0 {
			return ratioOverflow
		}
		return 0
	}
	return num / den
}

func ratioCH4H2(r dga.GasReading) float64    { return safeRatio(r.CH4, r.H2) }
func ratioC2H2C2H4(r dga.GasReading) float64 { return safeRatio(r.C2H2, r.C2H4) }
func ratioC2H4C2H6(r dga.GasReading) float64 { return safeRatio(r.C2H4, r.C2H6) }
func ratioC2H2CH4(r dga.GasReading) float64  { return safeRatio(r.C2H2, r.CH4) }
func ratioC2H6C2H2(r dga.GasReading) float64 { return safeRatio(r.C2H6, r.C2H2) }

// percentages returns each value as a share of their sum, or all zeros when
// the sum is not positive.
func percentages(values ...float64) []float64 {
	out := make([]float64, len(values))
	var total float64
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / total * 100
	}
	return out
}
