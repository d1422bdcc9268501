package normative

import "dga-engine/internal/dga"

type ratioCodes [3]int

// iecTable maps (C2H2/C2H4, CH4/H2, C2H4/C2H6) codes to a fault.
var iecTable = map[ratioCodes]dga.FaultLabel{
	{0, 0, 0}: dga.PartialDischarge,
	{1, 0, 0}: dga.LowEnergyDischarge,
	{2, 0, 0}: dga.LowEnergyDischarge,
	{1, 0, 1}: dga.HighEnergyDischarge,
	{1, 0, 2}: dga.HighEnergyDischarge,
	{2, 0, 1}: dga.HighEnergyDischarge,
	{2, 0, 2}: dga.HighEnergyDischarge,
	{0, 1, 0}: dga.ThermalLow,
	{0, 2, 0}: dga.ThermalLow,
	{0, 2, 1}: dga.ThermalMedium,
	{0, 1, 1}: dga.ThermalMedium,
	{0, 2, 2}: dga.ThermalHigh,
	{0, 1, 2}: dga.ThermalHigh,
}

func init() {
	for c1 := 1; c1 <= 2; c1++ {
		for c2 := 1; c2 <= 2; c2++ {
			for c5 := 0; c5 <= 2; c5++ {
				iecTable[ratioCodes{c1, c2, c5}] = dga.DischargeThermal
			}
		}
	}
}

func iecLowCode(r float64) int {
	switch {
	case r < 0.1:
		return 0
	case r <= 1:
		return 1
	}
	return 2
}

func iecEthyleneCode(r float64) int {
	switch {
	case r < 1:
		return 0
	case r <= 3:
		return 1
	}
	return 2
}

func diagnoseIEC(r dga.GasReading) Diagnosis {
	r1, r2, r5 := ratioC2H2C2H4(r), ratioCH4H2(r), ratioC2H4C2H6(r)
	codes := ratioCodes{iecLowCode(r1), iecLowCode(r2), iecEthyleneCode(r5)}

	label, ok := iecTable[codes]
	desc := "ratio code combination " + codeString(codes)
	if !ok {
		label = dga.Normal
		desc += " not in table"
	}
	return Diagnosis{
		Method:      IEC60599,
		Label:       label,
		Description: desc,
		Details: map[string]float64{
			"c2h2_c2h4": r1,
			"ch4_h2":    r2,
			"c2h4_c2h6": r5,
		},
	}
}

func codeString(c ratioCodes) string {
	b := []byte{'(', 0, ',', 0, ',', 0, ')'}
	b[1], b[3], b[5] = byte('0'+c[0]), byte('0'+c[1]), byte('0'+c[2])
	return string(b)
}
