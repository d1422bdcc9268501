package normative

import "dga-engine/internal/dga"

// Typical concentration limits (ppm) separating conditions 1|2, 2|3 and 3|4.
var ieeeGasLimits = []struct {
	gas    string
	value  func(dga.GasReading) float64
	limits [3]float64
}{
	{"h2", func(r dga.GasReading) float64 { return r.H2 }, [3]float64{100, 200, 500}},
	{"ch4", func(r dga.GasReading) float64 { return r.CH4 }, [3]float64{75, 125, 200}},
	{"c2h6", func(r dga.GasReading) float64 { return r.C2H6 }, [3]float64{65, 100, 150}},
	{"c2h4", func(r dga.GasReading) float64 { return r.C2H4 }, [3]float64{50, 100, 200}},
	{"c2h2", func(r dga.GasReading) float64 { return r.C2H2 }, [3]float64{2, 10, 35}},
	{"co", func(r dga.GasReading) float64 { return r.CO }, [3]float64{350, 570, 1400}},
	{"co2", func(r dga.GasReading) float64 { return r.CO2 }, [3]float64{2500, 4000, 10000}},
}

var ieeeTDCGLimits = [3]float64{720, 1920, 4630}

var ieeeConditions = map[int]string{
	1: "Condition 1: normal operation",
	2: "Condition 2: gases above typical values",
	3: "Condition 3: abnormal, investigation required",
	4: "Condition 4: dangerous, immediate action required",
}

func condition(value float64, limits [3]float64) int {
	for i, l := range limits {
		if value <= l {
			return i + 1
		}
	}
	return 4
}

func diagnoseIEEE(r dga.GasReading) Diagnosis {
	details := make(map[string]float64, len(ieeeGasLimits)+3)
	overall := 1
	for _, g := range ieeeGasLimits {
		c := condition(g.value(r), g.limits)
		details["condition_"+g.gas] = float64(c)
		overall = max(overall, c)
	}
	tdcg := r.TDCG()
	tdcgCond := condition(tdcg, ieeeTDCGLimits)
	overall = max(overall, tdcgCond)
	details["tdcg_ppm"] = tdcg
	details["tdcg_condition"] = float64(tdcgCond)
	details["overall_condition"] = float64(overall)

	label := dga.Normal
	if overall > 2 {
		label = ieeeSuggestFault(r)
	}
	return Diagnosis{Method: IEEEC57104, Label: label, Description: ieeeConditions[overall], Details: details}
}

func ieeeSuggestFault(r dga.GasReading) dga.FaultLabel {
	r1 := ratioCH4H2(r)
	r2 := ratioC2H2C2H4(r)
	r3 := ratioC2H4C2H6(r)

	if r.C2H2 > 10 {
		if r2 > 2 {
			return dga.LowEnergyDischarge
		}
		return dga.HighEnergyDischarge
	}
	switch {
	case r3 > 4:
		return dga.ThermalHigh
	case r3 > 1:
		return dga.ThermalMedium
	case r1 > 1:
		return dga.ThermalLow
	case r.H2 > 100 && r1 < 0.1:
		return dga.PartialDischarge
	}
	return dga.Overheating
}
