package series

import (
	"math"
	"sort"

	"github.com/roach88/arflow/internal/ir"
)

// Encode builds a TimeSeries of len(values) observations, marking the given
// positions missing. The value slots at missing positions are ignored.
// Duplicate indices collapse. Fails with InvalidLengthError when an index
// lies outside 0..T-1.
func Encode(values []float64, missing []int) (ir.TimeSeries, error) {
	mask := make([]bool, len(values))
	for _, t := range missing {
		if t < 0 || t >= len(values) {
			return ir.TimeSeries{}, &InvalidLengthError{
				Length:  len(values),
				Index:   t,
				Message: "missing position out of range",
			}
		}
		mask[t] = true
	}
	return EncodeMask(values, mask)
}

// EncodeMask is like Encode but takes a per-position missing mask.
// Fails with InvalidLengthError when len(mask) != len(values).
func EncodeMask(values []float64, mask []bool) (ir.TimeSeries, error) {
	if len(mask) != len(values) {
		return ir.TimeSeries{}, &InvalidLengthError{
			Length:  len(values),
			Index:   len(mask),
			Message: "mask length differs from value count",
		}
	}

	obs := make([]ir.Observation, len(values))
	for t, v := range values {
		if mask[t] {
			obs[t] = ir.Absent()
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ir.TimeSeries{}, &NonFiniteValueError{Index: t, Value: v}
		}
		obs[t] = ir.Observed(v)
	}
	return ir.NewTimeSeries(obs), nil
}

// Decode returns the values (zero at missing positions) and the sorted
// missing positions of ts. Decode(Encode(v, m)) returns (v, m) for every v
// that holds zero at the positions in m, with m sorted and free of duplicates.
func Decode(ts ir.TimeSeries) ([]float64, []int) {
	return ts.Values(), ts.Missing()
}

// Mask returns the per-position missing mask of ts.
func Mask(ts ir.TimeSeries) []bool {
	mask := make([]bool, ts.Len())
	for _, t := range ts.Missing() {
		mask[t] = true
	}
	return mask
}

// MaskPositions returns a new series with the given positions additionally
// marked missing. Positions already missing stay missing.
func MaskPositions(ts ir.TimeSeries, positions []int) (ir.TimeSeries, error) {
	values, missing := Decode(ts)
	all := append(missing, positions...)
	sort.Ints(all)
	return Encode(values, all)
}

// MaskBlock marks the contiguous block [start, start+length) missing on top
// of any existing missing positions. Fails with InvalidLengthError when the
// block does not fit inside the series.
func MaskBlock(ts ir.TimeSeries, start, length int) (ir.TimeSeries, error) {
	if length < 0 || start < 0 || start+length > ts.Len() {
		return ir.TimeSeries{}, &InvalidLengthError{
			Length:  ts.Len(),
			Index:   start + length - 1,
			Message: "missing block overruns the series",
		}
	}
	positions := make([]int, length)
	for i := range positions {
		positions[i] = start + i
	}
	return MaskPositions(ts, positions)
}
