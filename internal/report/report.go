// Package report compares evaluation result files across models: an overall
// leaderboard, mean error per attack type and, for adversarial samples, the
// share of predictions within each accuracy threshold.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/metrics"
	"github.com/mwiater/trigbench/internal/scoring"
)

// ColumnOrder is the attack type order of the robustness table.
var ColumnOrder = []scoring.AttackType{scoring.AttackClean, scoring.AttackSimilar, scoring.AttackRandom, scoring.AttackAdversarial}

// Input names one results file.
type Input struct {
	Model string
	Path  string
}

// ParseInputs parses Model=path arguments. A bare path uses the file's base
// name as the model name.
func ParseInputs(args []string) ([]Input, error) {
	seen := make(map[string]bool, len(args))
	out := make([]Input, 0, len(args))
	for _, arg := range args {
		model, path, ok := strings.Cut(arg, "=")
		if !ok {
			path = arg
			model = strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		}
		model, path = strings.TrimSpace(model), strings.TrimSpace(path)
		if model == "" || path == "" {
			return nil, fmt.Errorf("invalid results argument %q (want Model=path)", arg)
		}
		if seen[model] {
			return nil, fmt.Errorf("model %q given more than once", model)
		}
		seen[model] = true
		out = append(out, Input{Model: model, Path: path})
	}
	return out, nil
}

// ModelRecords are the result records loaded for one model.
type ModelRecords struct {
	Model   string
	Records []dataset.ResultRecord
}

// Load reads every input. Missing files are logged and skipped; other read
// errors are returned.
func Load(inputs []Input) ([]ModelRecords, error) {
	log := logging.Logger()
	var out []ModelRecords
	for _, in := range inputs {
		records, stats, err := dataset.LoadResults(in.Path)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("model", in.Model).Str("file", in.Path).Msg("results file not found")
			continue
		}
		if err != nil {
			return nil, err
		}
		if stats.Skipped > 0 {
			log.Warn().Str("model", in.Model).Int("skipped", stats.Skipped).Msg("ignored unreadable result lines")
		}
		log.Info().Str("model", in.Model).Int("records", len(records)).Msg("loaded results")
		out = append(out, ModelRecords{Model: in.Model, Records: records})
	}
	return out, nil
}

// LeaderboardRow is one model's overall standing.
type LeaderboardRow struct {
	Rank          int      `json:"rank"`
	Model         string   `json:"model"`
	Samples       int      `json:"samples"`
	Predicted     int      `json:"predicted"`
	MeanErrorKm   *float64 `json:"mean_error_km"`
	MedianErrorKm *float64 `json:"median_error_km"`
	MeanWLA       *float64 `json:"mean_wla"`
	MeanTBS       *float64 `json:"mean_tbs"`
	TBSCount      int      `json:"tbs_count"`
}

// AttackCell is one model × attack type entry.
type AttackCell struct {
	Samples     int      `json:"samples"`
	MeanErrorKm *float64 `json:"mean_error_km"`
}

// RobustnessRow holds one model's mean error per attack type.
type RobustnessRow struct {
	Model    string                            `json:"model"`
	ByAttack map[scoring.AttackType]AttackCell `json:"by_attack"`
}

// CDFRow holds the share of a model's adversarial errors strictly below
// each threshold.
type CDFRow struct {
	Model   string    `json:"model"`
	Samples int       `json:"samples"`
	Shares  []float64 `json:"shares"`
}

// Report is the comparison across models.
type Report struct {
	Records        int                  `json:"records"`
	AttackTypes    []scoring.AttackType `json:"attack_types"`
	ThresholdsKm   []float64            `json:"thresholds_km"`
	Leaderboard    []LeaderboardRow     `json:"leaderboard"`
	Robustness     []RobustnessRow      `json:"robustness"`
	AdversarialCDF []CDFRow             `json:"adversarial_cdf"`
}

// Build computes the report. thresholds are the distance cut-offs of the
// adversarial CDF table, usually the WLA thresholds.
func Build(models []ModelRecords, thresholds []scoring.Threshold) Report {
	r := Report{ThresholdsKm: make([]float64, len(thresholds))}
	for i, t := range thresholds {
		r.ThresholdsKm[i] = t.Km
	}

	columns := make(map[scoring.AttackType]bool)
	for _, m := range models {
		r.Records += len(m.Records)

		samples := make([]scoring.Sample, len(m.Records))
		byAttack := make(map[scoring.AttackType][]float64)
		counts := make(map[scoring.AttackType]int)
		var errs []float64
		for i, rec := range m.Records {
			samples[i] = rec.Sample()
			kind := samples[i].AttackType
			columns[kind] = true
			counts[kind]++
			if rec.ErrorKm != nil {
				errs = append(errs, *rec.ErrorKm)
				byAttack[kind] = append(byAttack[kind], *rec.ErrorKm)
			}
		}

		summary := scoring.Summarize(samples)
		row := LeaderboardRow{
			Model:       m.Model,
			Samples:     summary.Samples,
			Predicted:   summary.Predicted,
			MeanErrorKm: summary.MeanErrorKm,
			MeanWLA:     summary.MeanAccuracy,
			MeanTBS:     summary.MeanBias,
			TBSCount:    summary.BiasCount,
		}
		if len(errs) > 0 {
			median := metrics.Distribution(errs).P50
			row.MedianErrorKm = &median
		}
		r.Leaderboard = append(r.Leaderboard, row)

		robust := RobustnessRow{Model: m.Model, ByAttack: make(map[scoring.AttackType]AttackCell, len(counts))}
		for kind, n := range counts {
			cell := AttackCell{Samples: n}
			if values := byAttack[kind]; len(values) > 0 {
				mean := metrics.Distribution(values).Mean
				cell.MeanErrorKm = &mean
			}
			robust.ByAttack[kind] = cell
		}
		r.Robustness = append(r.Robustness, robust)

		adv := byAttack[scoring.AttackAdversarial]
		if len(adv) > 0 {
			r.AdversarialCDF = append(r.AdversarialCDF, CDFRow{
				Model:   m.Model,
				Samples: len(adv),
				Shares:  metrics.ShareBelow(adv, r.ThresholdsKm),
			})
		}
	}

	for _, kind := range scoring.AttackOrder {
		if columns[kind] || containsAttack(ColumnOrder, kind) {
			r.AttackTypes = append(r.AttackTypes, kind)
		}
	}
	rankLeaderboard(r.Leaderboard)
	return r
}

func containsAttack(list []scoring.AttackType, kind scoring.AttackType) bool {
	for _, k := range list {
		if k == kind {
			return true
		}
	}
	return false
}

// rankLeaderboard orders by mean error ascending. Models without any
// defined error go last.
func rankLeaderboard(rows []LeaderboardRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].MeanErrorKm, rows[j].MeanErrorKm
		switch {
		case a == nil && b == nil:
			return rows[i].Model < rows[j].Model
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		default:
			return rows[i].Model < rows[j].Model
		}
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}
