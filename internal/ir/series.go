package ir

// Observation is a single time-indexed scalar. A missing observation carries
// Present == false and its Value is never consulted.
type Observation struct {
	Value   float64 `json:"value"`
	Present bool    `json:"present"`
}

// Observed returns a present observation holding v.
func Observed(v float64) Observation {
	return Observation{Value: v, Present: true}
}

// Absent returns the explicit missing marker.
func Absent() Observation {
	return Observation{}
}

// TimeSeries is an ordered, immutable sequence of observations indexed 0..T-1.
// The zero value is an empty series.
type TimeSeries struct {
	obs     []Observation
	missing []int
}

// NewTimeSeries copies obs into a new series. Missing observations are
// normalized so that their Value is zero.
func NewTimeSeries(obs []Observation) TimeSeries {
	ts := TimeSeries{obs: make([]Observation, len(obs))}
	for t, o := range obs {
		if !o.Present {
			ts.obs[t] = Absent()
			ts.missing = append(ts.missing, t)
			continue
		}
		ts.obs[t] = o
	}
	return ts
}

// Len returns T.
func (ts TimeSeries) Len() int { return len(ts.obs) }

// At returns the observation at index t.
func (ts TimeSeries) At(t int) Observation { return ts.obs[t] }

// Observations returns a copy of the underlying observations.
func (ts TimeSeries) Observations() []Observation {
	out := make([]Observation, len(ts.obs))
	copy(out, ts.obs)
	return out
}

// Values returns a copy of the values with zero at missing positions.
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts.obs))
	for t, o := range ts.obs {
		if o.Present {
			out[t] = o.Value
		}
	}
	return out
}

// Missing returns the sorted indices of missing observations.
func (ts TimeSeries) Missing() []int {
	out := make([]int, len(ts.missing))
	copy(out, ts.missing)
	return out
}

// MissingCount returns the number of missing observations.
func (ts TimeSeries) MissingCount() int { return len(ts.missing) }

// PresentValues returns the values of present observations in index order.
func (ts TimeSeries) PresentValues() []float64 {
	out := make([]float64, 0, len(ts.obs)-len(ts.missing))
	for _, o := range ts.obs {
		if o.Present {
			out = append(out, o.Value)
		}
	}
	return out
}
