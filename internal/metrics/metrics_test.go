package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/trigbench/internal/geo"
	"github.com/mwiater/trigbench/internal/scoring"
)

func f(v float64) *float64 { return &v }

func sample(attack scoring.AttackType, errKm *float64, acc float64, bias *float64) scoring.Sample {
	s := scoring.Sample{AttackType: attack, ErrorKm: errKm, Accuracy: acc, Bias: bias}
	if errKm != nil {
		s.Predicted = &geo.Point{}
	}
	return s
}

func TestUpdateRunningStatWelford(t *testing.T) {
	var rs RunningStat
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		updateRunningStat(&rs, v)
	}
	assert.Equal(t, int64(8), rs.Count)
	assert.InDelta(t, 5.0, rs.Mean, 1e-12)
	assert.Equal(t, 2.0, rs.Min)
	assert.Equal(t, 9.0, rs.Max)
	assert.InDelta(t, 2.138089935299395, rs.StdDev(), 1e-12)

	updateRunningStat(&rs, nan())
	assert.Equal(t, int64(8), rs.Count)
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestAggregatorPerAttack(t *testing.T) {
	agg := NewAggregator()
	agg.Record("qwen", sample(scoring.AttackAdversarial, f(300), 0.4, f(100)), 2*time.Second)
	agg.Record("qwen", sample(scoring.AttackClean, f(200), 0.4, nil), time.Second)
	agg.Record("qwen", sample(scoring.AttackClean, nil, 0, nil), 0)
	hit := true
	trapped := sample(scoring.AttackSimilar, f(10), 0.8, nil)
	trapped.TrapHit = &hit
	agg.Record("qwen", trapped, 0)

	mm, ok := agg.Snapshot("qwen")
	require.True(t, ok)
	assert.Equal(t, int64(4), mm.Overall.Samples)
	assert.Equal(t, int64(1), mm.Overall.ParseFailures)
	assert.Equal(t, int64(3), mm.Overall.ErrorKm.Count)
	assert.Equal(t, int64(1), mm.Overall.TrapHits)
	assert.InDelta(t, 1500.0, mm.Overall.LatencyMillis.Mean, 1e-9)

	require.Len(t, mm.ByAttack, 3)
	assert.Equal(t, "clean", mm.ByAttack[0].AttackType)
	assert.Equal(t, "similar", mm.ByAttack[1].AttackType)
	assert.Equal(t, "adversarial", mm.ByAttack[2].AttackType)
	assert.Equal(t, int64(2), mm.ByAttack[0].Samples)
	assert.Equal(t, 100.0, mm.ByAttack[2].Bias.Mean)

	_, ok = agg.Snapshot("missing")
	assert.False(t, ok)
}

func TestAggregatorConcurrentRecord(t *testing.T) {
	agg := NewAggregator()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Record("m", sample(scoring.AttackRandom, f(1), 0.8, nil), 0)
		}()
	}
	wg.Wait()
	mm, _ := agg.Snapshot("m")
	assert.Equal(t, int64(100), mm.Overall.Samples)
}

func TestAggregatorSave(t *testing.T) {
	agg := NewAggregator()
	agg.Record("b", sample(scoring.AttackClean, f(5), 0.6, nil), 0)
	agg.Record("a", sample(scoring.AttackClean, f(5), 0.6, nil), 0)

	path := filepath.Join(t.TempDir(), "data", "metrics.json")
	require.NoError(t, agg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []ModelMetrics
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ModelName)
}

func TestDistribution(t *testing.T) {
	d := Distribution([]float64{10, 1, 4, 7})
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 10.0, d.Max)
	assert.InDelta(t, 5.5, d.P50, 1e-12)
	assert.InDelta(t, 5.5, d.Mean, 1e-12)
	assert.InDelta(t, 9.1, d.P90, 1e-12)

	assert.Equal(t, DistributionStats{}, Distribution(nil))
}

func TestShareBelow(t *testing.T) {
	got := ShareBelow([]float64{0.5, 24, 199, 3000}, []float64{1, 25, 200, 750, 2500})
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 0.75, 0.75}, got)
	assert.Equal(t, []float64{0, 0}, ShareBelow(nil, []float64{1, 2}))
}

func TestExporterTextfile(t *testing.T) {
	e := NewExporter()
	s := sample(scoring.AttackAdversarial, f(300), 0.4, f(100))
	e.ObserveSample("qwen", s)
	e.ObserveSample("qwen", sample(scoring.AttackClean, nil, 0, nil))
	e.ObserveInference("qwen", 1500*time.Millisecond)

	agg := NewAggregator()
	agg.Record("qwen", s, 0)
	mm, _ := agg.Snapshot("qwen")
	e.SetSummary("qwen", scoring.Summarize([]scoring.Sample{s}), mm)

	path := filepath.Join(t.TempDir(), "trigbench.prom")
	require.NoError(t, e.WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, `trigbench_samples_total{attack_type="adversarial",model="qwen"} 1`)
	assert.Contains(t, text, `trigbench_parse_failures_total{attack_type="clean",model="qwen"} 1`)
	assert.Contains(t, text, `trigbench_tbs_mean_km{model="qwen"} 100`)
	assert.Contains(t, text, `trigbench_wla_mean{attack_type="all",model="qwen"} 0.4`)
	assert.Contains(t, text, "trigbench_inference_duration_seconds_count")
	assert.False(t, strings.Contains(text, "trigbench_trap_fall_rate{"), "undefined TFR must not be exported")
}
