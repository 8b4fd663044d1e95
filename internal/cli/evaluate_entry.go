package trigbench

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/mwiater/trigbench/internal/benchmark"
	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/evaluation"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/scoring"
	"github.com/mwiater/trigbench/internal/tui"
)

func runEvaluate(cmd *cobra.Command) error {
	cfg := activeConfig()
	log := logging.Logger()

	imgDir, _ := cmd.Flags().GetString("imgDir")
	gtPath, _ := cmd.Flags().GetString("groundTruth")
	metaPath, _ := cmd.Flags().GetString("benchMeta")
	output, _ := cmd.Flags().GetString("output")
	model, _ := cmd.Flags().GetString("model")
	limit, _ := cmd.Flags().GetInt("limit")
	resume, _ := cmd.Flags().GetBool("resume")
	trapsPath, _ := cmd.Flags().GetString("traps")
	metricsFile, _ := cmd.Flags().GetString("metricsFile")
	statsFile, _ := cmd.Flags().GetString("statsFile")
	useTUI, _ := cmd.Flags().GetBool("tui")

	if model != "" {
		cfg.Inference.Model = model
	}
	predictor, err := newPredictor(cfg.InferenceClient())
	if err != nil {
		return err
	}

	gt, gtStats, err := dataset.LoadGroundTruth(gtPath)
	if err != nil {
		return err
	}
	gt.SetPrefixSeparator(cfg.Scoring.PrefixSeparator)
	log.Info().Str("file", gtPath).Str("stats", gtStats.String()).Msg("loaded ground truth")

	if metaPath == "" {
		candidate := filepath.Join(imgDir, benchmark.MetaFileName)
		if _, err := os.Stat(candidate); err == nil {
			metaPath = candidate
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	meta, metaStats, err := dataset.LoadMeta(metaPath)
	if err != nil {
		return err
	}
	if metaPath != "" {
		log.Info().Str("file", metaPath).Str("stats", metaStats.String()).Msg("loaded benchmark metadata")
	}

	traps, trapStats, err := dataset.LoadTraps(trapsPath)
	if err != nil {
		return err
	}
	if trapsPath != "" {
		log.Info().Str("file", trapsPath).Str("stats", trapStats.String()).Msg("loaded trap points")
	}

	scorer, err := scoring.NewScorer(cfg.ScoringConfig())
	if err != nil {
		return err
	}

	opts := evaluation.Options{
		ImageDir:    imgDir,
		OutputPath:  output,
		Model:       cfg.Inference.Model,
		Limit:       limit,
		Workers:     cfg.Workers,
		Resume:      resume,
		MetricsFile: metricsFile,
		StatsFile:   statsFile,
	}
	ev, err := evaluation.New(predictor, scorer, evaluation.Inputs{GroundTruth: gt, Meta: meta, Traps: traps}, opts)
	if err != nil {
		return err
	}

	var result evaluation.Result
	if useTUI {
		result, err = tui.RunEvaluation(cmd.Context(), ev, tui.Options{Title: "trigbench evaluate", Model: opts.Model, Workers: opts.Workers})
	} else {
		result, err = ev.Run(cmd.Context())
	}
	if err != nil {
		return err
	}

	if DebugEnabled() {
		pp.Println(result.Summary)
	}
	if JSONModeEnabled() {
		return writeSummaryJSON(cmd.OutOrStdout(), opts.Model, result)
	}
	printSummary(cmd.OutOrStdout(), opts.Model, result)
	return nil
}

func writeSummaryJSON(w io.Writer, model string, result evaluation.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Model   string          `json:"model"`
		Output  string          `json:"output"`
		Images  int             `json:"images"`
		NoTruth int             `json:"no_ground_truth"`
		Failed  int             `json:"failed"`
		Summary scoring.Summary `json:"summary"`
	}{model, result.OutputPath, result.Images, result.NoTruth, result.Failed, result.Summary})
}

func printSummary(w io.Writer, model string, result evaluation.Result) {
	s := result.Summary
	fmt.Fprintf(w, "Evaluation summary for %s\n", model)
	fmt.Fprintf(w, "  Images:            %d (%d without ground truth)\n", result.Images, result.NoTruth)
	fmt.Fprintf(w, "  Samples:           %d (%d predicted, %d parse failures, %d request failures)\n", s.Samples, s.Predicted, s.ParseFailures, result.Failed)
	fmt.Fprintf(w, "  Mean error:        %s\n", optional(s.MeanErrorKm, "%.1f km"))
	fmt.Fprintf(w, "  Mean WLA:          %s over %d samples (%s over all)\n", optional(s.MeanAccuracy, "%.4f"), s.AccuracyCount, optional(s.AccuracyAll, "%.4f"))
	fmt.Fprintf(w, "  Mean TBS:          %s over %d pairs\n", optional(s.MeanBias, "%+.1f km"), s.BiasCount)
	if p := s.Prefix; p != nil {
		fmt.Fprintf(w, "  Prefix matches:    %d (low-confidence ground truth, not in the means above)\n", s.PrefixMatches)
		fmt.Fprintf(w, "    Mean WLA:        %s over %d samples\n", optional(p.MeanAccuracy, "%.4f"), p.AccuracyCount)
		fmt.Fprintf(w, "    Mean TBS:        %s over %d pairs\n", optional(p.MeanBias, "%+.1f km"), p.BiasCount)
	}
	if s.TrapChecked > 0 {
		fmt.Fprintf(w, "  Trap fall rate:    %s (%d/%d)\n", optional(s.TrapFallRate, "%.4f"), s.TrapHits, s.TrapChecked)
	}
	fmt.Fprintf(w, "  Results:           %s\n", result.OutputPath)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}
