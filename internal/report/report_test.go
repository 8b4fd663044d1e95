package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/scoring"
)

func km(v float64) *float64 { return &v }

func rec(name, attack string, errKm *float64, tbs *float64) dataset.ResultRecord {
	r := dataset.ResultRecord{Filename: name, AttackType: attack, ErrorKm: errKm, TBS: tbs}
	if errKm != nil {
		r.WLAScore = scoring.WLA(scoring.DefaultWLA(), errKm)
		r.PredLat, r.PredLon = km(0), km(0)
	}
	return r
}

func fixture() []ModelRecords {
	return []ModelRecords{
		{Model: "Qwen", Records: []dataset.ResultRecord{
			rec("paris01_clean.jpg", "clean", km(10), nil),
			rec("paris01_adversarial_Rome.png", "adversarial", km(1000), km(990)),
			rec("paris01_similar_Pariss.png", "similar", km(20), km(10)),
			rec("paris01_random_x.png", "", nil, nil),
		}},
		{Model: "GPT", Records: []dataset.ResultRecord{
			rec("a_clean.jpg", "clean", km(5), nil),
			rec("a_adversarial_x.png", "adversarial", km(0.5), km(-4.5)),
			rec("b_adversarial_y.png", "adversarial", km(29.5), nil),
		}},
		{Model: "Blind", Records: []dataset.ResultRecord{
			rec("a_clean.jpg", "clean", nil, nil),
		}},
	}
}

func TestParseInputs(t *testing.T) {
	inputs, err := ParseInputs([]string{"Qwen=res/qwen.jsonl", "runs/gpt4.jsonl", "A=b=c.jsonl"})
	require.NoError(t, err)
	assert.Equal(t, []Input{
		{Model: "Qwen", Path: "res/qwen.jsonl"},
		{Model: "gpt4", Path: "runs/gpt4.jsonl"},
		{Model: "A", Path: "b=c.jsonl"},
	}, inputs)

	_, err = ParseInputs([]string{"Qwen="})
	assert.Error(t, err)
	_, err = ParseInputs([]string{"Q=a.jsonl", "Q=b.jsonl"})
	assert.Error(t, err)
}

func TestLoadSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qwen.jsonl")
	require.NoError(t, dataset.WriteJSONLAtomic(path, fixture()[0].Records))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.jsonl"), []byte("{not json}\n"), 0o644))

	loaded, err := Load([]Input{
		{Model: "Qwen", Path: path},
		{Model: "Gone", Path: filepath.Join(dir, "missing.jsonl")},
		{Model: "Bad", Path: filepath.Join(dir, "bad.jsonl")},
	})
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "Qwen", loaded[0].Model)
	assert.Len(t, loaded[0].Records, 4)
	assert.Empty(t, loaded[1].Records)
}

func TestBuildLeaderboardAscending(t *testing.T) {
	r := Build(fixture(), scoring.DefaultWLA())

	assert.Equal(t, 8, r.Records)
	require.Len(t, r.Leaderboard, 3)
	assert.Equal(t, "GPT", r.Leaderboard[0].Model)
	assert.Equal(t, 1, r.Leaderboard[0].Rank)
	assert.InDelta(t, 35.0/3, *r.Leaderboard[0].MeanErrorKm, 1e-9)
	assert.InDelta(t, 5.0, *r.Leaderboard[0].MedianErrorKm, 1e-9)

	qwen := r.Leaderboard[1]
	assert.Equal(t, "Qwen", qwen.Model)
	assert.Equal(t, 4, qwen.Samples)
	assert.Equal(t, 3, qwen.Predicted)
	assert.InDelta(t, 1030.0/3, *qwen.MeanErrorKm, 1e-9)
	assert.InDelta(t, 500.0, *qwen.MeanTBS, 1e-9)
	assert.Equal(t, 2, qwen.TBSCount)

	blind := r.Leaderboard[2]
	assert.Equal(t, "Blind", blind.Model)
	assert.Equal(t, 3, blind.Rank)
	assert.Nil(t, blind.MeanErrorKm)
	assert.Nil(t, blind.MedianErrorKm)
}

func TestBuildRobustnessUsesFilenameFallback(t *testing.T) {
	r := Build(fixture(), scoring.DefaultWLA())
	assert.Equal(t, ColumnOrder, r.AttackTypes)

	qwen := r.Robustness[0]
	assert.Equal(t, "Qwen", qwen.Model)
	assert.InDelta(t, 10.0, *qwen.ByAttack[scoring.AttackClean].MeanErrorKm, 1e-9)
	assert.InDelta(t, 1000.0, *qwen.ByAttack[scoring.AttackAdversarial].MeanErrorKm, 1e-9)
	random := qwen.ByAttack[scoring.AttackRandom]
	assert.Equal(t, 1, random.Samples)
	assert.Nil(t, random.MeanErrorKm)
}

func TestBuildAdversarialCDF(t *testing.T) {
	r := Build(fixture(), scoring.DefaultWLA())
	assert.Equal(t, []float64{1, 25, 200, 750, 2500}, r.ThresholdsKm)
	require.Len(t, r.AdversarialCDF, 2)
	assert.Equal(t, CDFRow{Model: "Qwen", Samples: 1, Shares: []float64{0, 0, 0, 0, 1}}, r.AdversarialCDF[0])
	assert.Equal(t, CDFRow{Model: "GPT", Samples: 2, Shares: []float64{0.5, 0.5, 1, 1, 1}}, r.AdversarialCDF[1])
}

func TestBuildUnknownColumn(t *testing.T) {
	r := Build([]ModelRecords{{Model: "M", Records: []dataset.ResultRecord{rec("plain.jpg", "", km(3), nil)}}}, nil)
	assert.Equal(t, append(append([]scoring.AttackType(nil), ColumnOrder...), scoring.AttackUnknown), r.AttackTypes)
	assert.Empty(t, r.AdversarialCDF)
}

func TestRender(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(fixture(), scoring.DefaultWLA())))
	out := buf.String()
	for _, want := range []string{"Leaderboard", "GPT", "Qwen", "Blind", "1000.0 (n=1)", "< 2500 km", "50.0%"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "Qwen: adversarial +990.0 km vs clean")
	assert.Contains(t, out, "GPT: adversarial +10.0 km vs clean")
	assert.Contains(t, out, "Blind: clean vs adversarial not comparable")

	buf.Reset()
	require.NoError(t, Render(&buf, Report{}))
	assert.Equal(t, "No data loaded.", strings.TrimSpace(buf.String()))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Build(fixture(), scoring.DefaultWLA())))
	out := buf.String()
	assert.Contains(t, out, `"leaderboard"`)
	assert.Contains(t, out, `"adversarial": {`)
	assert.Contains(t, out, `"mean_error_km": null`)
}
