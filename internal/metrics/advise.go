package metrics

import "github.com/jmaddaus/sprintlens/internal/model"

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// advice is one threshold rule. value extracts the figure it tests; rules
// whose figure is unavailable are skipped.
type advice struct {
	metric   string
	priority string
	text     string
	value    func(k *model.KPIs) (float64, bool)
	when     func(v float64) bool
}

func measure(m func(k *model.KPIs) model.Measure) func(k *model.KPIs) (float64, bool) {
	return func(k *model.KPIs) (float64, bool) {
		v := m(k)
		return v.Value, v.State == model.MeasureComputed
	}
}

func count(c func(k *model.KPIs) int) func(k *model.KPIs) (float64, bool) {
	return func(k *model.KPIs) (float64, bool) { return float64(c(k)), true }
}

var (
	defectDensity = func(k *model.KPIs) (float64, bool) {
		if k.DefectRate.State != model.MeasureComputed {
			return 0, false
		}
		return k.DefectRate.Value / 100, true
	}
	resolutionRate = measure(func(k *model.KPIs) model.Measure { return k.ResolutionRate })
	mttr           = measure(func(k *model.KPIs) model.Measure { return k.MTTR })
	criticalTotal  = count(func(k *model.KPIs) int { return k.CriticalBugs })
	criticalOpen   = count(func(k *model.KPIs) int { return k.CriticalOpen })
)

// adviceTable lists every rule in display order. All matching rules apply.
var adviceTable = []advice{
	{"defect_density", PriorityHigh, "Urgent: enforce code review before every merge", defectDensity, func(v float64) bool { return v > 2 }},
	{"defect_density", PriorityHigh, "Urgent: raise unit test coverage to at least 80%", defectDensity, func(v float64) bool { return v > 2 }},
	{"defect_density", PriorityMedium, "Agree on a Definition of Done with explicit quality criteria", defectDensity, func(v float64) bool { return v > 1 && v <= 2 }},
	{"defect_density", PriorityMedium, "Pair on complex user stories", defectDensity, func(v float64) bool { return v > 1 && v <= 2 }},
	{"defect_density", PriorityLow, "Current quality practices are working; keep them", defectDensity, func(v float64) bool { return v <= 1 }},

	{"resolution_rate", PriorityLow, "Excellent efficiency: the team resolves work steadily", resolutionRate, func(v float64) bool { return v >= 80 }},
	{"resolution_rate", PriorityLow, "Good efficiency: keep the current resolution pace", resolutionRate, func(v float64) bool { return v >= 70 && v < 80 }},
	{"resolution_rate", PriorityHigh, "Low efficiency: analyze why issues stay unresolved", resolutionRate, func(v float64) bool { return v < 70 }},
	{"resolution_rate", PriorityHigh, "Review the backlog and close the oldest issues first", resolutionRate, func(v float64) bool { return v < 70 }},

	{"critical_bugs", PriorityHigh, "Very high volume of critical bugs requires immediate attention", criticalTotal, func(v float64) bool { return v > 30 }},
	{"critical_bugs", PriorityHigh, "High pressure from critical bugs: consider extra capacity", criticalTotal, func(v float64) bool { return v > 20 && v <= 30 }},
	{"critical_bugs", PriorityLow, "Critical bug volume is manageable", criticalTotal, func(v float64) bool { return v <= 20 }},

	{"critical_bugs_pending", PriorityHigh, "Excessive critical backlog: schedule a focused daily triage", criticalOpen, func(v float64) bool { return v > 15 }},
	{"critical_bugs_pending", PriorityHigh, "Reassign senior developers to pending critical bugs", criticalOpen, func(v float64) bool { return v > 15 }},
	{"critical_bugs_pending", PriorityHigh, "Accelerate closing of pending critical bugs", criticalOpen, func(v float64) bool { return v > 10 && v <= 15 }},
	{"critical_bugs_pending", PriorityLow, "Pending critical bugs are under control", criticalOpen, func(v float64) bool { return v > 0 && v <= 10 }},
	{"critical_bugs_pending", PriorityLow, "All critical bugs are resolved", criticalOpen, func(v float64) bool { return v == 0 }},

	{"mttr", PriorityHigh, "High time to resolve: unblock work daily", mttr, func(v float64) bool { return v > 10 }},
	{"mttr", PriorityLow, "Resolution speed is healthy", mttr, func(v float64) bool { return v <= 7 }},
}

// Advise evaluates the threshold rules against k.
func Advise(k model.KPIs) []model.Recommendation {
	var out []model.Recommendation
	for _, a := range adviceTable {
		v, ok := a.value(&k)
		if !ok || !a.when(v) {
			continue
		}
		out = append(out, model.Recommendation{Metric: a.metric, Priority: a.priority, Text: a.text})
	}
	return out
}
