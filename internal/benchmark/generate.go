package benchmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/distractor"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/providers/comfy"
	"github.com/mwiater/trigbench/internal/scoring"
	"github.com/mwiater/trigbench/internal/util"
)

// Generator is the image-edit backend. comfy.Client satisfies it.
type Generator interface {
	Connect(ctx context.Context) error
	UploadImage(ctx context.Context, name string, data []byte) (string, error)
	QueuePrompt(ctx context.Context, workflow comfy.Workflow) (string, error)
	WaitForCompletion(ctx context.Context, promptID string) error
	Outputs(ctx context.Context, promptID string) ([]comfy.OutputImage, error)
	FetchImage(ctx context.Context, img comfy.OutputImage) ([]byte, error)
	Close() error
}

// GenerateOptions control benchmark generation. Attacks and Tasks may both
// be set; tasks are generated as adversarial samples.
type GenerateOptions struct {
	Attacks      []dataset.AttackRecord
	Tasks        []distractor.Task
	Workflow     comfy.Workflow
	Nodes        comfy.NodeIDs
	OutputDir    string
	Limit        int
	IncludeClean bool
}

// GenerateStats counts what one generation run did.
type GenerateStats struct {
	Sources  int
	Jobs     int
	Images   int
	Clean    int
	Failed   int
	Degraded int
}

type genJob struct {
	id     string
	attack scoring.AttackType
	text   string
	task   *distractor.Task
}

// genSource is one clean image and every edit requested for it.
type genSource struct {
	original  string
	cleanPath string
	jobs      []genJob
}

// buildSources groups attack records and tasks by original image, keeping
// first-seen order.
func buildSources(attacks []dataset.AttackRecord, tasks []distractor.Task) []*genSource {
	var sources []*genSource
	index := make(map[string]*genSource)
	get := func(original, cleanPath string) *genSource {
		key := original + "\x00" + cleanPath
		if src, ok := index[key]; ok {
			return src
		}
		src := &genSource{original: original, cleanPath: cleanPath}
		index[key] = src
		sources = append(sources, src)
		return src
	}

	for _, rec := range attacks {
		src := get(rec.OriginalFilename, sourceImage(rec))
		for _, at := range rec.Ordered() {
			src.jobs = append(src.jobs, genJob{attack: at.Type, text: at.Text})
		}
	}
	for i := range tasks {
		task := tasks[i]
		original := task.OriginalSource
		if original == "" {
			original = filepath.Base(task.Image)
		}
		src := get(original, task.Image)
		src.jobs = append(src.jobs, genJob{id: task.ID, attack: scoring.AttackAdversarial, text: task.Text, task: &task})
	}
	return sources
}

// Generate edits every clean image once per requested distractor and writes
// the outputs plus one metadata line per image to opts.OutputDir. With
// IncludeClean each clean image is copied alongside with attack type clean
// so the set can be paired during evaluation. Per-job failures are logged and
// counted; cancellation stops the run.
func Generate(ctx context.Context, gen Generator, det distractor.Detector, opts GenerateOptions) (GenerateStats, error) {
	var stats GenerateStats
	if gen == nil {
		return stats, errors.New("generation requires an image generator")
	}
	if len(opts.Workflow) == 0 {
		return stats, errors.New("generation requires a workflow template")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return stats, errors.New("output directory is required")
	}
	if opts.Nodes == (comfy.NodeIDs{}) {
		opts.Nodes = comfy.DefaultNodeIDs()
	}

	if err := gen.Connect(ctx); err != nil {
		return stats, err
	}
	defer gen.Close()

	writer, err := dataset.OpenWriter(filepath.Join(opts.OutputDir, MetaFileName), false)
	if err != nil {
		return stats, err
	}
	defer writer.Close()

	log := logging.Logger()
	sources := buildSources(opts.Attacks, opts.Tasks)
	log.Info().Int("sources", len(sources)).Str("output", opts.OutputDir).Msg("generating benchmark images")

	for i, src := range sources {
		if opts.Limit > 0 && stats.Sources >= opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("generation interrupted: %w", err)
		}
		stats.Sources++
		log.Info().Msgf("[%d/%d] Processing %s...", i+1, len(sources), src.original)

		image, err := os.ReadFile(src.cleanPath)
		if err != nil {
			stats.Failed += len(src.jobs)
			log.Warn().Err(err).Str("file", src.cleanPath).Msg("clean image not found, skipping")
			continue
		}

		if opts.IncludeClean {
			if err := writeClean(writer, opts.OutputDir, src, image); err != nil {
				return stats, err
			}
			stats.Clean++
		}

		uploaded, err := gen.UploadImage(ctx, filepath.Base(src.cleanPath), image)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("generation interrupted: %w", ctx.Err())
			}
			stats.Failed += len(src.jobs)
			log.Warn().Err(err).Str("file", src.cleanPath).Msg("upload failed")
			continue
		}

		for _, job := range src.jobs {
			stats.Jobs++
			written, degraded, err := generateOne(ctx, gen, det, writer, opts, src, job, image, uploaded)
			stats.Images += written
			if degraded {
				stats.Degraded++
			}
			if err != nil {
				if ctx.Err() != nil {
					return stats, fmt.Errorf("generation interrupted: %w", ctx.Err())
				}
				stats.Failed++
				log.Warn().Err(err).Str("file", src.original).Str("attack", string(job.attack)).Msg("generation failed")
			}
		}
	}

	log.Info().Int("images", stats.Images).Int("failed", stats.Failed).Int("degraded", stats.Degraded).
		Str("meta", writer.Path()).Msg("benchmark generation complete")
	return stats, nil
}

func writeClean(writer *dataset.Writer, dir string, src *genSource, image []byte) error {
	name := cleanName(src.original, src.cleanPath)
	if err := util.WriteFile(filepath.Join(dir, name), image); err != nil {
		return err
	}
	return writer.Write(dataset.MetaRecord{
		Filename:       name,
		OriginalSource: src.original,
		CleanSource:    src.cleanPath,
		AttackType:     string(scoring.AttackClean),
		TaskID:         newTaskID(),
	})
}

// generateOne runs one edit and saves its outputs. It reports how many
// images were written and whether an object-anchored task fell back to free
// placement.
func generateOne(ctx context.Context, gen Generator, det distractor.Detector, writer *dataset.Writer, opts GenerateOptions, src *genSource, job genJob, image []byte, uploaded string) (int, bool, error) {
	log := logging.Logger()
	prompt := fmt.Sprintf(EditPrompt, job.text)

	task := job.task
	if task != nil {
		resolved, box, err := distractor.Locate(ctx, det, *task, image)
		if err != nil {
			if ctx.Err() != nil {
				return 0, false, ctx.Err()
			}
			log.Warn().Err(err).Str("file", src.original).Msg("object detection failed, placing text freely")
		}
		if box != nil {
			prompt = fmt.Sprintf(AnchoredEditPrompt, job.text, box.Class)
		}
		task = &resolved
	}
	degraded := task != nil && task.Degraded

	seed := newSeed()
	workflow, missing := opts.Workflow.Fill(opts.Nodes, uploaded, prompt, seed)
	if len(missing) > 0 {
		log.Warn().Strs("nodes", missing).Msg("workflow is missing nodes")
	}

	promptID, outputs, err := runWorkflow(ctx, gen, workflow)
	if err != nil {
		return 0, degraded, err
	}

	id := job.id
	if id == "" {
		id = newTaskID()
	}
	strategy := ""
	if task != nil {
		strategy = string(task.RequestedStrategy)
	}

	written := 0
	for n, out := range outputs {
		data, err := gen.FetchImage(ctx, out)
		if err != nil {
			if ctx.Err() != nil {
				return written, degraded, ctx.Err()
			}
			log.Warn().Err(err).Str("image", out.Filename).Msg("download failed")
			continue
		}
		name := outputName(src.original, string(job.attack), job.text, strategy, n)
		if err := util.WriteFile(filepath.Join(opts.OutputDir, name), data); err != nil {
			return written, degraded, err
		}
		if err := writer.Write(metaFor(src, job, task, name, prompt, seed, id)); err != nil {
			return written, degraded, err
		}
		written++
		log.Info().Msgf("    -> Saved: %s", name)
	}
	if written == 0 {
		return 0, degraded, fmt.Errorf("no output of prompt %s could be downloaded", promptID)
	}
	return written, degraded, nil
}

// runWorkflow queues one filled workflow and waits for its output images.
func runWorkflow(ctx context.Context, gen Generator, workflow comfy.Workflow) (string, []comfy.OutputImage, error) {
	// The websocket is closed after a failed wait; reconnect before queueing
	// so the completion message is not missed.
	if err := gen.Connect(ctx); err != nil {
		return "", nil, err
	}
	promptID, err := gen.QueuePrompt(ctx, workflow)
	if err != nil {
		return "", nil, err
	}
	if err := gen.WaitForCompletion(ctx, promptID); err != nil {
		return promptID, nil, err
	}
	outputs, err := gen.Outputs(ctx, promptID)
	if err != nil {
		return promptID, nil, err
	}
	if len(outputs) == 0 {
		return promptID, nil, fmt.Errorf("prompt %s produced no images", promptID)
	}
	return promptID, outputs, nil
}

func metaFor(src *genSource, job genJob, task *distractor.Task, name, prompt string, seed int64, id string) dataset.MetaRecord {
	text := job.text
	rec := dataset.MetaRecord{
		Filename:          name,
		OriginalSource:    src.original,
		CleanSource:       src.cleanPath,
		AttackType:        string(job.attack),
		InjectedText:      &text,
		InjectionStrategy: dataset.InjectionGenerativeEdit,
		PromptUsed:        prompt,
		Seed:              &seed,
		TaskID:            id,
	}
	if task != nil {
		score := task.Score
		rec.SemanticDifficulty = string(task.Bucket)
		rec.RelevanceScore = &score
		rec.PhysicalLevel = string(task.RequestedStrategy)
		rec.AchievedStrategy = string(task.AchievedStrategy)
		rec.Degraded = task.Degraded
	}
	return rec
}
