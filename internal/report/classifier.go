package report

// TriagePolicy holds the escalation thresholds used by Classify. Thresholds
// are clinical policy rather than hard-coded law; deployments may tune them,
// but the rule ordering (red flags first, first match wins) is fixed.
type TriagePolicy struct {
	PainRed          int
	BreathingRed     int
	PainYellowMin    int
	PainYellowMax    int
	OverallYellowMin int
	OverallYellowMax int
}

// DefaultPolicy returns the thresholds agreed with the care team: a single
// red-flag symptom overrides an otherwise mild profile, and ties break
// toward escalation.
func DefaultPolicy() TriagePolicy {
	return TriagePolicy{
		PainRed:          7,
		BreathingRed:     6,
		PainYellowMin:    4,
		PainYellowMax:    6,
		OverallYellowMin: 5,
		OverallYellowMax: 7,
	}
}

// Classify maps a symptom report to an alert level. It is a total function:
// a partial report is classified using only the fields present, and any
// missing required field is treated as the most severe value it could have
// held (fail-safe-high), so incomplete data never silently underestimates
// risk.
//
// Ordered rule evaluation, first match wins:
//  1. RED    pain >= PainRed, breathing >= BreathingRed, fever, wound
//            abnormality, or any required field missing.
//  2. YELLOW pain within the yellow band, or overall within the yellow band.
//  3. GREEN  otherwise.
func (p TriagePolicy) Classify(r *SymptomReport) AlertLevel {
	if len(r.MissingRequired()) > 0 {
		return AlertRed
	}
	if *r.Pain >= p.PainRed || *r.Breathing >= p.BreathingRed || *r.Fever || *r.Wound {
		return AlertRed
	}
	if (*r.Pain >= p.PainYellowMin && *r.Pain <= p.PainYellowMax) ||
		(*r.Overall >= p.OverallYellowMin && *r.Overall <= p.OverallYellowMax) {
		return AlertYellow
	}
	return AlertGreen
}

// Classify applies the default triage policy.
func Classify(r *SymptomReport) AlertLevel {
	return DefaultPolicy().Classify(r)
}
