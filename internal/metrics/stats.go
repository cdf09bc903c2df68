package metrics

import (
	"sort"

	"github.com/jmaddaus/sprintlens/internal/model"
)

// Median of values; the mean of the two middle values for an even count.
// An empty input is unavailable, not zero.
func Median(values []float64) model.Measure {
	if len(values) == 0 {
		return model.Unavailable()
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return model.Computed(s[mid])
	}
	return model.Computed((s[mid-1] + s[mid]) / 2)
}

// Mean of values, unavailable when empty.
func Mean(values []float64) model.Measure {
	if len(values) == 0 {
		return model.Unavailable()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return model.Computed(sum / float64(len(values)))
}

// Percent returns num/den*100, or a default zero when den is zero.
func Percent(num, den int) model.Measure {
	if den == 0 {
		return model.DefaultZero()
	}
	return model.Computed(float64(num) * 100 / float64(den))
}
