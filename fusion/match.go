package fusion

import "math"

// Nearest returns the index in timestamps closest to query and the absolute
// difference. The scan is linear and the first candidate wins a tie; idx is
// -1 when timestamps is empty.
func Nearest(query float64, timestamps []float64) (idx int, diff float64) {
	idx, diff = -1, math.Inf(1)
	for i, ts := range timestamps {
		if d := math.Abs(query - ts); d < diff {
			idx, diff = i, d
		}
	}
	return idx, diff
}

// SegmentTime is the assumed start of biosignal segment i (0-based) for a
// fixed segment duration.
func SegmentTime(i int, segmentSeconds float64) float64 {
	return float64(i) * segmentSeconds
}
