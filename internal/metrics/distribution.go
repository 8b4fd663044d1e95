package metrics

import (
	"math"
	"sort"
)

// DistributionStats summarises a set of values.
type DistributionStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
}

// Distribution computes summary statistics over values.
func Distribution(values []float64) DistributionStats {
	if len(values) == 0 {
		return DistributionStats{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var rs RunningStat
	for _, v := range sorted {
		updateRunningStat(&rs, v)
	}
	return DistributionStats{
		Count:  len(sorted),
		Mean:   rs.Mean,
		StdDev: rs.StdDev(),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P50:    percentile(sorted, 50),
		P90:    percentile(sorted, 90),
	}
}

// percentile interpolates linearly within sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}

// ShareBelow returns the fraction of values strictly below each threshold.
func ShareBelow(values []float64, thresholds []float64) []float64 {
	out := make([]float64, len(thresholds))
	if len(values) == 0 {
		return out
	}
	for i, t := range thresholds {
		n := 0
		for _, v := range values {
			if v < t {
				n++
			}
		}
		out[i] = float64(n) / float64(len(values))
	}
	return out
}
