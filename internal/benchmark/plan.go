package benchmark

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/distractor"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/relevance"
)

// Classify scores candidates against image through the oracle and buckets
// them by relevance.
func Classify(ctx context.Context, oracle relevance.Oracle, classifier *relevance.Classifier, image []byte, candidates []string, template string) (relevance.Buckets, error) {
	if classifier == nil {
		return relevance.Buckets{}, errors.New("relevance classifier is nil")
	}
	scores, err := relevance.Score(ctx, oracle, image, candidates, template)
	if err != nil {
		return relevance.Buckets{}, err
	}
	return classifier.Classify(scores), nil
}

// PlanOptions control task planning. Candidates is a shared pool scored for
// every image in addition to that image's own attack texts.
type PlanOptions struct {
	Candidates []string
	Template   string
	Strategies []distractor.Strategy
	OutputPath string
	Limit      int
}

// PlanStats counts what one planning run did.
type PlanStats struct {
	Images  int
	Tasks   int
	Skipped int
	Failed  int
}

// Plan classifies each image's candidates, picks one distractor per
// difficulty bucket and expands the picks over the physical strategies.
// Tasks are written to opts.OutputPath, replacing its content.
func Plan(ctx context.Context, oracle relevance.Oracle, classifier *relevance.Classifier, records []dataset.AttackRecord, opts PlanOptions) (PlanStats, error) {
	var stats PlanStats
	if oracle == nil {
		return stats, errors.New("planning requires an embedding oracle")
	}
	if opts.OutputPath == "" {
		return stats, errors.New("task output path is required")
	}
	if len(opts.Strategies) == 0 {
		opts.Strategies = distractor.DefaultStrategies()
	}

	writer, err := dataset.OpenWriter(opts.OutputPath, true)
	if err != nil {
		return stats, err
	}
	defer writer.Close()

	log := logging.Logger()
	for i, rec := range records {
		if opts.Limit > 0 && stats.Images >= opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("planning interrupted: %w", err)
		}

		candidates := append([]string(nil), opts.Candidates...)
		for _, at := range rec.Ordered() {
			candidates = append(candidates, at.Text)
		}
		if len(relevance.NormalizeCandidates(candidates)) == 0 {
			stats.Skipped++
			log.Debug().Str("file", rec.OriginalFilename).Msg("no candidates, skipping")
			continue
		}

		imagePath := sourceImage(rec)
		image, err := os.ReadFile(imagePath)
		if err != nil {
			stats.Failed++
			log.Warn().Err(err).Str("file", imagePath).Msg("clean image not readable")
			continue
		}
		stats.Images++

		buckets, err := Classify(ctx, oracle, classifier, image, candidates, opts.Template)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("planning interrupted: %w", ctx.Err())
			}
			stats.Failed++
			log.Warn().Err(err).Str("file", rec.OriginalFilename).Msg("classification failed")
			continue
		}

		selections := distractor.Select(buckets)
		tasks := distractor.Expand(imagePath, rec.OriginalFilename, selections, opts.Strategies)
		for _, task := range tasks {
			task.ID = newTaskID()
			if err := writer.Write(task); err != nil {
				return stats, err
			}
		}
		stats.Tasks += len(tasks)
		log.Info().Msgf("[%d/%d] %s -> hard=%d mid=%d easy=%d, %d tasks",
			i+1, len(records), rec.OriginalFilename, len(buckets.Hard), len(buckets.Mid), len(buckets.Easy), len(tasks))
	}
	return stats, nil
}

// sourceImage is the clean image an attack record points at.
func sourceImage(rec dataset.AttackRecord) string {
	if rec.ImagePath != "" {
		return rec.ImagePath
	}
	return rec.CleanImagePath
}

// LoadTasks reads a tasks file written by Plan.
func LoadTasks(path string) ([]distractor.Task, dataset.LoadStats, error) {
	return dataset.ReadJSONLFile[distractor.Task](path, nil)
}
