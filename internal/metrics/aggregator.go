// Package metrics aggregates scored samples into per-model, per-attack
// running statistics and exports them as JSON or as a Prometheus textfile.
package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/scoring"
)

const overallKey = "all"

// Aggregator collects running statistics per model. It is safe for
// concurrent use.
type Aggregator struct {
	mutex   sync.Mutex
	metrics map[string]*ModelMetrics
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{metrics: make(map[string]*ModelMetrics)}
}

// Record folds one scored sample into the statistics for model. latency is
// the inference round trip; pass 0 when unknown.
func (a *Aggregator) Record(model string, s scoring.Sample, latency time.Duration) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	mm, exists := a.metrics[model]
	if !exists {
		mm = &ModelMetrics{ModelName: model, Overall: AttackStats{AttackType: overallKey}}
		a.metrics[model] = mm
	}
	mm.LastUpdatedUTC = time.Now().UTC()

	updateStats(&mm.Overall, s, latency)

	attack := string(s.AttackType)
	for i := range mm.ByAttack {
		if mm.ByAttack[i].AttackType == attack {
			updateStats(&mm.ByAttack[i], s, latency)
			return
		}
	}
	stats := AttackStats{AttackType: attack}
	updateStats(&stats, s, latency)
	mm.ByAttack = append(mm.ByAttack, stats)
}

// Snapshot returns a copy of the statistics for model with attack types in
// reporting order.
func (a *Aggregator) Snapshot(model string) (ModelMetrics, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	mm, ok := a.metrics[model]
	if !ok {
		return ModelMetrics{}, false
	}
	out := *mm
	out.ByAttack = append([]AttackStats(nil), mm.ByAttack...)
	sortByAttackOrder(out.ByAttack)
	return out, true
}

// Models returns the recorded model names, sorted.
func (a *Aggregator) Models() []string {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	names := make([]string, 0, len(a.metrics))
	for name := range a.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes all model statistics to path as indented JSON.
func (a *Aggregator) Save(path string) error {
	logging.LogEvent("[METRICS] Saving metrics to %s", path)
	var all []ModelMetrics
	for _, name := range a.Models() {
		mm, _ := a.Snapshot(name)
		all = append(all, mm)
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding metrics: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating metrics directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing metrics: %w", err)
	}
	return nil
}

// updateStats adds one sample to the running statistics.
func updateStats(stats *AttackStats, s scoring.Sample, latency time.Duration) {
	stats.Samples++
	if s.Predicted == nil {
		stats.ParseFailures++
	}
	if s.ErrorKm != nil {
		updateRunningStat(&stats.ErrorKm, *s.ErrorKm)
		updateRunningStat(&stats.WLA, s.Accuracy)
	}
	if s.Bias != nil {
		updateRunningStat(&stats.Bias, *s.Bias)
	}
	if s.TrapHit != nil {
		stats.TrapChecked++
		if *s.TrapHit {
			stats.TrapHits++
		}
	}
	if latency > 0 {
		updateRunningStat(&stats.LatencyMillis, float64(latency)/float64(time.Millisecond))
	}
}

// updateRunningStat updates a single running statistic using Welford's online algorithm.
func updateRunningStat(rs *RunningStat, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}

func sortByAttackOrder(stats []AttackStats) {
	rank := make(map[string]int, len(scoring.AttackOrder))
	for i, t := range scoring.AttackOrder {
		rank[string(t)] = i
	}
	sort.SliceStable(stats, func(i, j int) bool {
		ri, okI := rank[stats[i].AttackType]
		rj, okJ := rank[stats[j].AttackType]
		if !okI {
			ri = len(rank)
		}
		if !okJ {
			rj = len(rank)
		}
		return ri < rj
	})
}
