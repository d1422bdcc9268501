package normative

import "dga-engine/internal/dga"

func diagnoseDuvalTriangle(r dga.GasReading) Diagnosis {
	p := percentages(r.CH4, r.C2H4, r.C2H2)
	ch4, c2h4, c2h2 := p[0], p[1], p[2]
	d := Diagnosis{
		Method:  DuvalTriangle,
		Details: map[string]float64{"pct_ch4": ch4, "pct_c2h4": c2h4, "pct_c2h2": c2h2},
	}
	if ch4 == 0 && c2h4 == 0 && c2h2 == 0 {
		d.Label, d.Description = dga.Normal, "insufficient gases for the triangle"
		return d
	}

	switch {
	case c2h2 > 13:
		if c2h4 < 23 {
			d.Label = dga.LowEnergyDischarge
		} else {
			d.Label = dga.HighEnergyDischarge
		}
	case c2h2 <= 4:
		switch {
		case c2h4 < 20 && ch4 > 98:
			d.Label = dga.PartialDischarge
		case c2h4 < 20:
			d.Label = dga.ThermalLow
		case c2h4 < 50:
			d.Label = dga.ThermalMedium
		default:
			d.Label = dga.ThermalHigh
		}
	case c2h4 < 23:
		d.Label = dga.LowEnergyDischarge
	default:
		d.Label = dga.DischargeThermal
	}
	d.Description = "zone " + d.Label.String()
	return d
}

func diagnoseDuvalPentagon(r dga.GasReading) Diagnosis {
	p := percentages(r.H2, r.CH4, r.C2H6, r.C2H4, r.C2H2)
	h2, ch4, c2h6, c2h4, c2h2 := p[0], p[1], p[2], p[3], p[4]
	d := Diagnosis{
		Method: DuvalPentagon,
		Details: map[string]float64{
			"pct_h2": h2, "pct_ch4": ch4, "pct_c2h6": c2h6, "pct_c2h4": c2h4, "pct_c2h2": c2h2,
		},
	}
	if h2 == 0 && ch4 == 0 && c2h6 == 0 {
		d.Label, d.Description = dga.Normal, "insufficient gases for the pentagon"
		return d
	}
	d.Label = pentagonZone(h2, ch4, c2h6, c2h4, c2h2)
	d.Description = "zone " + d.Label.String()
	return d
}

func pentagonZone(h2, ch4, c2h6, c2h4, c2h2 float64) dga.FaultLabel {
	if h2 > 60 && c2h2 < 5 && c2h4 < 10 {
		return dga.PartialDischarge
	}

	if c2h2 > 15 {
		if c2h4 > 25 {
			return dga.HighEnergyDischarge
		}
		return dga.LowEnergyDischarge
	}
	if c2h2 > 5 {
		switch {
		case c2h4 > 30:
			return dga.HighEnergyDischarge
		case h2 > 30:
			return dga.LowEnergyDischarge
		}
		return dga.DischargeThermal
	}

	switch {
	case c2h4 > 50:
		return dga.ThermalHigh
	case c2h4 > 25:
		if c2h6 > 20 {
			return dga.ThermalMedium
		}
		return dga.ThermalHigh
	case c2h4 > 10:
		if c2h6 > 30 {
			return dga.Overheating
		}
		return dga.ThermalMedium
	case ch4 > 40:
		if c2h6 > 20 {
			return dga.Overheating
		}
		return dga.ThermalLow
	case c2h6 > 40:
		return dga.Overheating
	case h2 > 40:
		return dga.PartialDischarge
	}
	return dga.ThermalLow
}
