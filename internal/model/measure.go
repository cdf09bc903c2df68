package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// MeasureState distinguishes a computed value from a substituted zero and
// from a value that could not be computed at all.
type MeasureState string

const (
	MeasureComputed    MeasureState = "computed"
	MeasureDefault     MeasureState = "default"
	MeasureUnavailable MeasureState = "unavailable"
)

// Measure is a metric value together with how it was obtained.
type Measure struct {
	Value float64
	State MeasureState
}

// Computed returns a computed measure. NaN and infinities degrade to
// unavailable so they never reach the snapshot.
func Computed(v float64) Measure {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable()
	}
	return Measure{Value: v, State: MeasureComputed}
}

// DefaultZero returns the zero substituted for an empty denominator.
func DefaultZero() Measure {
	return Measure{Value: 0, State: MeasureDefault}
}

// Unavailable returns a measure that could not be computed.
func Unavailable() Measure {
	return Measure{State: MeasureUnavailable}
}

// Available reports whether the measure carries a usable value.
func (m Measure) Available() bool {
	return m.State == MeasureComputed || m.State == MeasureDefault
}

// String formats the value with one decimal, or "n/a".
func (m Measure) String() string {
	if !m.Available() {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", m.Value)
}

type measureJSON struct {
	Value *float64     `json:"value"`
	State MeasureState `json:"state"`
}

func (m Measure) MarshalJSON() ([]byte, error) {
	out := measureJSON{State: m.State}
	if out.State == "" {
		out.State = MeasureUnavailable
	}
	if m.Available() {
		v := m.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	var in measureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.State {
	case MeasureComputed, MeasureDefault:
		if in.Value == nil {
			return fmt.Errorf("measure in state %q has no value", in.State)
		}
		m.Value = *in.Value
		m.State = in.State
	case MeasureUnavailable, "":
		*m = Unavailable()
	default:
		return fmt.Errorf("unknown measure state %q", in.State)
	}
	return nil
}
