package normative

import "dga-engine/internal/dga"

// rogersTable maps (CH4/H2, C2H2/C2H4, C2H4/C2H6) codes to a fault.
var rogersTable = map[ratioCodes]dga.FaultLabel{
	{0, 0, 0}: dga.Normal,
	{5, 0, 0}: dga.PartialDischarge,
	{0, 1, 0}: dga.LowEnergyDischarge,
	{1, 1, 0}: dga.LowEnergyDischarge,
	{0, 2, 0}: dga.HighEnergyDischarge,
	{0, 1, 1}: dga.HighEnergyDischarge,
	{0, 1, 2}: dga.HighEnergyDischarge,
	{0, 2, 1}: dga.HighEnergyDischarge,
	{0, 2, 2}: dga.HighEnergyDischarge,
	{1, 0, 0}: dga.ThermalLow,
	{2, 0, 0}: dga.ThermalLow,
	{2, 0, 1}: dga.ThermalMedium,
	{1, 0, 1}: dga.ThermalMedium,
	{2, 0, 2}: dga.ThermalHigh,
	{1, 0, 2}: dga.ThermalHigh,
}

func rogersMethaneCode(r float64) int {
	switch {
	case r < 0.1:
		return 5
	case r <= 1:
		return 0
	case r <= 3:
		return 1
	}
	return 2
}

func rogersAcetyleneCode(r float64) int {
	switch {
	case r < 0.1:
		return 0
	case r <= 3:
		return 1
	}
	return 2
}

func diagnoseRogers(r dga.GasReading) Diagnosis {
	r1, r2, r5 := ratioCH4H2(r), ratioC2H2C2H4(r), ratioC2H4C2H6(r)
	codes := ratioCodes{rogersMethaneCode(r1), rogersAcetyleneCode(r2), iecEthyleneCode(r5)}

	label, ok := rogersTable[codes]
	desc := "ratio code combination " + codeString(codes)
	if !ok {
		label = dga.Normal
		desc += " not in table"
	}
	return Diagnosis{
		Method:      Rogers,
		Label:       label,
		Description: desc,
		Details: map[string]float64{
			"ch4_h2":    r1,
			"c2h2_c2h4": r2,
			"c2h4_c2h6": r5,
		},
	}
}
