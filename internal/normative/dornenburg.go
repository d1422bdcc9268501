package normative

import "dga-engine/internal/dga"

// L1 thresholds (ppm); the method applies only when one is exceeded.
var dornenburgL1 = []struct {
	value func(dga.GasReading) float64
	limit float64
}{
	{func(r dga.GasReading) float64 { return r.H2 }, 100},
	{func(r dga.GasReading) float64 { return r.CH4 }, 120},
	{func(r dga.GasReading) float64 { return r.C2H2 }, 1},
	{func(r dga.GasReading) float64 { return r.C2H4 }, 50},
	{func(r dga.GasReading) float64 { return r.C2H6 }, 65},
	{func(r dga.GasReading) float64 { return r.CO }, 350},
}

func exceedsL1(r dga.GasReading) bool {
	for _, l := range dornenburgL1 {
		if l.value(r) > l.limit {
			return true
		}
	}
	return false
}

func diagnoseDornenburg(r dga.GasReading) Diagnosis {
	if !exceedsL1(r) {
		return Diagnosis{Method: Dornenburg, Label: dga.Normal, Description: "no gas above L1 limits"}
	}

	r1, r2, r3, r4 := ratioCH4H2(r), ratioC2H2C2H4(r), ratioC2H2CH4(r), ratioC2H6C2H2(r)
	d := Diagnosis{
		Method: Dornenburg,
		Details: map[string]float64{
			"ch4_h2":    r1,
			"c2h2_c2h4": r2,
			"c2h2_ch4":  r3,
			"c2h6_c2h2": r4,
		},
	}

	switch {
	case r1 > 1 && r2 < 0.1:
		if r4 > 0.4 {
			d.Label, d.Description = dga.ThermalMedium, "thermal decomposition of oil"
		} else {
			d.Label, d.Description = dga.ThermalLow, "low temperature thermal fault"
		}
	case r1 < 0.1 && r2 < 0.1:
		d.Label, d.Description = dga.PartialDischarge, "partial discharge (corona)"
	case r2 > 0.1 && r3 > 0.3:
		d.Label, d.Description = dga.HighEnergyDischarge, "arcing"
	case r2 > 0.1:
		d.Label, d.Description = dga.LowEnergyDischarge, "low energy discharge"
	case r1 > 1:
		d.Label, d.Description = dga.ThermalLow, "possible thermal fault"
	default:
		d.Label, d.Description = dga.Normal, "no defined fault pattern"
	}
	return d
}
