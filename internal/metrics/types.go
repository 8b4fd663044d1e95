package metrics

import (
	"math"
	"time"
)

// ModelMetrics is the aggregated robustness record for one model.
type ModelMetrics struct {
	ModelName      string        `json:"model_name"`
	LastUpdatedUTC time.Time     `json:"last_updated_utc"`
	Overall        AttackStats   `json:"overall"`
	ByAttack       []AttackStats `json:"by_attack"`
}

// AttackStats holds running statistics for one attack type (or for all
// samples, with AttackType "all").
type AttackStats struct {
	AttackType    string      `json:"attack_type"`
	Samples       int64       `json:"samples"`
	ParseFailures int64       `json:"parse_failures"`
	ErrorKm       RunningStat `json:"error_km"`
	WLA           RunningStat `json:"wla"`
	Bias          RunningStat `json:"tbs"`
	TrapChecked   int64       `json:"trap_checked"`
	TrapHits      int64       `json:"trap_hits"`
	LatencyMillis RunningStat `json:"latency_ms"`
}

// RunningStat holds the values for online calculation of mean, variance
// and stddev.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"-"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// StdDev is the sample standard deviation, 0 below two observations.
func (rs RunningStat) StdDev() float64 {
	if rs.Count < 2 {
		return 0
	}
	return math.Sqrt(rs.M2 / float64(rs.Count-1))
}
