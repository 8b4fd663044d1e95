// Package evaluation runs a geolocation model over a benchmark image set:
// inference, coordinate parsing and scoring in pass 1, clean/adversarial
// pairing in pass 2, then the summary and output files.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwiater/trigbench/internal/coords"
	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/geo"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/metrics"
	"github.com/mwiater/trigbench/internal/providers"
	"github.com/mwiater/trigbench/internal/scoring"
	"github.com/mwiater/trigbench/internal/util"
)

// Predictor asks a model where an image was taken.
type Predictor interface {
	PredictLocation(ctx context.Context, image []byte, mime string) (string, error)
}

// Options control one evaluation run.
type Options struct {
	ImageDir    string
	OutputPath  string
	Model       string
	Limit       int
	Workers     int
	Resume      bool
	MetricsFile string
	StatsFile   string
	Extensions  []string
}

// Inputs are the lookup tables consulted per image.
type Inputs struct {
	GroundTruth *dataset.GroundTruth
	Meta        dataset.Meta
	Traps       dataset.Traps
}

// Event reports progress on one image.
type Event struct {
	Done     int
	Total    int
	Filename string
	Sample   *scoring.Sample
	Err      error
	Resumed  bool
}

// Result is the outcome of a completed run.
type Result struct {
	Samples    []scoring.Sample
	Summary    scoring.Summary
	Metrics    metrics.ModelMetrics
	Images     int
	NoTruth    int
	Resumed    int
	Failed     int
	OutputPath string
}

// Evaluator wires a predictor to the scorer.
type Evaluator struct {
	predictor Predictor
	scorer    *scoring.Scorer
	inputs    Inputs
	opts      Options
	progress  func(Event)
}

// New validates the options and returns an Evaluator.
func New(p Predictor, scorer *scoring.Scorer, in Inputs, opts Options) (*Evaluator, error) {
	if p == nil {
		return nil, errors.New("evaluation requires a predictor")
	}
	if scorer == nil {
		return nil, errors.New("evaluation requires a scorer")
	}
	if in.GroundTruth == nil || in.GroundTruth.Len() == 0 {
		return nil, errors.New("evaluation requires a non-empty ground truth table")
	}
	if strings.TrimSpace(opts.ImageDir) == "" {
		return nil, errors.New("image directory is required")
	}
	if strings.TrimSpace(opts.OutputPath) == "" {
		return nil, errors.New("output path is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = dataset.ImageExtensions
	}
	if in.Meta == nil {
		in.Meta = dataset.Meta{}
	}
	return &Evaluator{predictor: p, scorer: scorer, inputs: in, opts: opts}, nil
}

// OnProgress registers a callback invoked after each image. Calls are
// serialised.
func (e *Evaluator) OnProgress(fn func(Event)) {
	e.progress = fn
}

type job struct {
	index       int
	filename    string
	observation scoring.Observation
}

// plan resolves ground truth and metadata for each image and applies the
// limit. Images without ground truth are dropped.
func (e *Evaluator) plan(files []string) ([]job, int) {
	log := logging.Logger()
	var (
		jobs    []job
		noTruth int
	)
	for _, name := range files {
		if e.opts.Limit > 0 && len(jobs) >= e.opts.Limit {
			break
		}
		meta, hasMeta := e.inputs.Meta.Get(name)
		gt, match, ok := e.inputs.GroundTruth.Resolve(name, meta.OriginalSource)
		if !ok {
			noTruth++
			log.Debug().Str("file", name).Msg("no ground truth, skipping")
			continue
		}
		if match == scoring.MatchPrefix {
			log.Warn().Str("file", name).Msg("ground truth matched by filename prefix only")
		}
		obs := scoring.Observation{
			Filename:    name,
			AttackType:  scoring.AttackUnknown,
			GroundTruth: gt,
			Match:       match,
			Trap:        e.inputs.Traps.Get(name),
		}
		if hasMeta {
			obs.OriginalSource = meta.OriginalSource
			obs.AttackType = scoring.ParseAttackType(meta.AttackType)
			obs.InjectedText = meta.InjectedText
		}
		jobs = append(jobs, job{index: len(jobs), filename: name, observation: obs})
	}
	return jobs, noTruth
}

// Run evaluates every planned image. On cancellation the partial file keeps
// all completed pass-1 records and the final output is not written.
func (e *Evaluator) Run(ctx context.Context) (Result, error) {
	log := logging.Logger()

	files, err := dataset.ListImages(e.opts.ImageDir, e.opts.Extensions)
	if err != nil {
		return Result{}, err
	}
	jobs, noTruth := e.plan(files)
	log.Info().Int("images", len(files)).Int("planned", len(jobs)).Int("no_truth", noTruth).Msg("evaluation planned")

	result := Result{Images: len(files), NoTruth: noTruth, OutputPath: e.opts.OutputPath}
	samples := make([]*scoring.Sample, len(jobs))
	latencies := make([]time.Duration, len(jobs))
	exporter := metrics.NewExporter()

	partialPath := dataset.PartialPath(e.opts.OutputPath)
	pending := jobs
	if e.opts.Resume {
		var resumed int
		pending, resumed, err = e.resume(jobs, samples)
		if err != nil {
			return result, err
		}
		result.Resumed = resumed
		if resumed > 0 {
			log.Info().Int("resumed", resumed).Str("partial", partialPath).Msg("resuming evaluation")
		}
	}

	writer, err := dataset.OpenWriter(partialPath, !e.opts.Resume)
	if err != nil {
		return result, err
	}
	defer writer.Close()

	var (
		mu     sync.Mutex
		done   = result.Resumed
		failed int
	)
	total := len(jobs)
	for i := range samples {
		if samples[i] != nil {
			exporter.ObserveSample(e.opts.Model, *samples[i])
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, j := range pending {
		if gctx.Err() != nil {
			break
		}
		j := j
		g.Go(func() error {
			sample, latency, predictErr := e.evaluateOne(gctx, j)
			if predictErr != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			// Failed requests stay out of the partial file so a resumed run
			// retries them.
			if predictErr == nil {
				if err := writer.Write(dataset.FromSample(sample, e.opts.Model)); err != nil {
					return err
				}
			}
			exporter.ObserveSample(e.opts.Model, sample)
			if latency > 0 {
				exporter.ObserveInference(e.opts.Model, latency)
			}

			mu.Lock()
			defer mu.Unlock()
			samples[j.index] = &sample
			latencies[j.index] = latency
			done++
			if predictErr != nil {
				failed++
			}
			logSample(done, total, sample, predictErr)
			if e.progress != nil {
				e.progress(Event{Done: done, Total: total, Filename: j.filename, Sample: &sample, Err: predictErr})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("evaluation interrupted after %d of %d images: %w", done, total, err)
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("evaluation interrupted after %d of %d images: %w", done, total, err)
	}
	result.Failed = failed

	observed := make([]scoring.Sample, 0, len(samples))
	observedLatency := make([]time.Duration, 0, len(samples))
	for i, s := range samples {
		if s != nil {
			observed = append(observed, *s)
			observedLatency = append(observedLatency, latencies[i])
		}
	}

	paired := e.scorer.Pair(observed)
	result.Samples = paired
	result.Summary = scoring.Summarize(paired)

	agg := metrics.NewAggregator()
	records := make([]dataset.ResultRecord, len(paired))
	for i, s := range paired {
		records[i] = dataset.FromSample(s, e.opts.Model)
		agg.Record(e.opts.Model, s, observedLatency[i])
	}
	result.Metrics, _ = agg.Snapshot(e.opts.Model)

	if err := dataset.WriteJSONLAtomic(e.opts.OutputPath, records); err != nil {
		return result, err
	}
	_ = writer.Close()
	if err := os.Remove(partialPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("partial", partialPath).Msg("could not remove partial results")
	}

	if e.opts.StatsFile != "" {
		if err := agg.Save(e.opts.StatsFile); err != nil {
			return result, err
		}
	}
	if e.opts.MetricsFile != "" {
		exporter.SetSummary(e.opts.Model, result.Summary, result.Metrics)
		if err := exporter.WriteTextfile(e.opts.MetricsFile); err != nil {
			return result, err
		}
	}
	return result, nil
}

// resume replays pass-1 records from a previous run's partial file. Records
// are re-scored so the clean-error cache is rebuilt. It returns the jobs
// still to run.
func (e *Evaluator) resume(jobs []job, samples []*scoring.Sample) ([]job, int, error) {
	records, stats, err := dataset.LoadPartial(e.opts.OutputPath)
	if err != nil {
		return nil, 0, err
	}
	if stats.Skipped > 0 {
		log := logging.Logger()
		log.Warn().Int("skipped", stats.Skipped).Msg("ignored unreadable partial records")
	}
	byName := make(map[string]dataset.ResultRecord, len(records))
	for _, rec := range records {
		byName[rec.Filename] = rec
	}

	var pending []job
	resumed := 0
	for _, j := range jobs {
		rec, ok := byName[j.filename]
		if !ok {
			pending = append(pending, j)
			continue
		}
		obs := j.observation
		obs.PredictionText = rec.PredictionText
		obs.ParseFormat = rec.ParseFormat
		if rec.PredLat != nil && rec.PredLon != nil {
			obs.Predicted = &geo.Point{Lat: *rec.PredLat, Lon: *rec.PredLon}
		}
		s := e.scorer.Observe(obs)
		samples[j.index] = &s
		resumed++
	}
	return pending, resumed, nil
}

// evaluateOne runs inference and pass-1 scoring for one image. Inference
// failures yield a sample without a prediction and the error.
func (e *Evaluator) evaluateOne(ctx context.Context, j job) (scoring.Sample, time.Duration, error) {
	obs := j.observation
	data, err := os.ReadFile(filepath.Join(e.opts.ImageDir, j.filename))
	if err != nil {
		obs.ParseFormat = string(coords.FormatNone)
		return e.scorer.Observe(obs), 0, fmt.Errorf("error reading image: %w", err)
	}

	start := time.Now()
	text, err := e.predictor.PredictLocation(ctx, data, providers.DetectImageMIME(data))
	latency := time.Since(start)
	if err != nil {
		obs.ParseFormat = string(coords.FormatNone)
		return e.scorer.Observe(obs), latency, err
	}

	point, format := coords.ParseDetailed(text)
	obs.PredictionText = text
	obs.Predicted = point
	obs.ParseFormat = string(format)
	return e.scorer.Observe(obs), latency, nil
}

func logSample(done, total int, s scoring.Sample, err error) {
	log := logging.Logger()
	switch {
	case err != nil:
		log.Warn().Msgf("[%d/%d] %s -> inference failed: %v", done, total, s.Filename, err)
	case s.ErrorKm != nil:
		log.Info().Msgf("[%d/%d] %s -> Error: %.2f km | WLA: %.1f", done, total, s.Filename, *s.ErrorKm, s.Accuracy)
	default:
		log.Info().Msgf("[%d/%d] %s -> Failed to parse: %q", done, total, s.Filename, util.TruncateRunes(s.PredictionText, 120))
	}
}
