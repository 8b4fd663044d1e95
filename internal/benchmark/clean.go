package benchmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/providers/comfy"
	"github.com/mwiater/trigbench/internal/util"
)

// CleanMetaFileName is the metadata file Clean writes beside the clean
// images. GenerateAttacks reads it through AttackOptions.CleanMeta.
const CleanMetaFileName = "metadata.jsonl"

// DefaultCleanPrompt asks the generator to erase existing scene text.
const DefaultCleanPrompt = "Remove all text from the image."

// CleanModes are the accepted values of CleanOptions.Mode.
var CleanModes = []string{"remove", "inpaint", "custom"}

const cleanTimestampLayout = "20060102_150405"

var cleanNow = time.Now

// CleanOptions control the text-removal pass over a directory of raw images.
// A nil Seed draws a fresh seed per image.
type CleanOptions struct {
	InputDir  string
	OutputDir string
	Workflow  comfy.Workflow
	Nodes     comfy.NodeIDs
	Prompt    string
	Mode      string
	Seed      *int64
	Limit     int
}

// CleanStats counts what one text-removal run did.
type CleanStats struct {
	Images  int
	Cleaned int
	Outputs int
	Skipped int
	Failed  int
}

// completedCleans returns the originals already listed in an existing clean
// metadata file.
func completedCleans(path string) (map[string]bool, error) {
	entries, _, err := dataset.ReadJSONLFile[CleanEntry](path, nil)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(entries))
	for _, e := range entries {
		done[e.OriginalFilename] = true
	}
	return done, nil
}

// Clean runs the removal prompt over every image in opts.InputDir and writes
// {base}_{mode}_{seed}.png plus one metadata line per output into
// opts.OutputDir. Images already listed in the metadata are skipped so an
// interrupted run can be restarted. Per-image failures are logged and
// counted; cancellation stops the run.
func Clean(ctx context.Context, gen Generator, opts CleanOptions) (CleanStats, error) {
	var stats CleanStats
	if gen == nil {
		return stats, errors.New("text removal requires an image generator")
	}
	if len(opts.Workflow) == 0 {
		return stats, errors.New("text removal requires a workflow template")
	}
	if strings.TrimSpace(opts.InputDir) == "" || strings.TrimSpace(opts.OutputDir) == "" {
		return stats, errors.New("input and output directories are required")
	}
	if strings.TrimSpace(opts.Prompt) == "" {
		opts.Prompt = DefaultCleanPrompt
	}
	if opts.Mode == "" {
		opts.Mode = CleanModes[0]
	}
	if !slices.Contains(CleanModes, opts.Mode) {
		return stats, fmt.Errorf("unknown clean mode %q (want one of %s)", opts.Mode, strings.Join(CleanModes, ", "))
	}
	if opts.Nodes == (comfy.NodeIDs{}) {
		opts.Nodes = comfy.DefaultNodeIDs()
	}

	files, err := dataset.ListImages(opts.InputDir, nil)
	if err != nil {
		return stats, err
	}
	metaPath := filepath.Join(opts.OutputDir, CleanMetaFileName)
	done, err := completedCleans(metaPath)
	if err != nil {
		return stats, err
	}

	if err := gen.Connect(ctx); err != nil {
		return stats, err
	}
	defer gen.Close()

	writer, err := dataset.OpenWriter(metaPath, false)
	if err != nil {
		return stats, err
	}
	defer writer.Close()

	log := logging.Logger()
	log.Info().Int("images", len(files)).Int("done", len(done)).Str("mode", opts.Mode).Msg("removing scene text")

	for i, name := range files {
		if opts.Limit > 0 && stats.Images >= opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("text removal interrupted: %w", err)
		}
		if done[name] {
			stats.Skipped++
			continue
		}
		stats.Images++
		log.Info().Msgf("[%d/%d] Processing %s...", i+1, len(files), name)

		written, err := cleanOne(ctx, gen, writer, opts, name)
		stats.Outputs += written
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("text removal interrupted: %w", ctx.Err())
			}
			stats.Failed++
			log.Warn().Err(err).Str("file", name).Msg("text removal failed")
			continue
		}
		stats.Cleaned++
	}

	log.Info().Int("cleaned", stats.Cleaned).Int("failed", stats.Failed).Int("skipped", stats.Skipped).
		Str("meta", writer.Path()).Msg("text removal complete")
	return stats, nil
}

func cleanOne(ctx context.Context, gen Generator, writer *dataset.Writer, opts CleanOptions, name string) (int, error) {
	log := logging.Logger()
	image, err := os.ReadFile(filepath.Join(opts.InputDir, name))
	if err != nil {
		return 0, err
	}
	uploaded, err := gen.UploadImage(ctx, name, image)
	if err != nil {
		return 0, err
	}

	seed := newSeed()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	workflow, missing := opts.Workflow.Fill(opts.Nodes, uploaded, opts.Prompt, seed)
	if len(missing) > 0 {
		log.Warn().Strs("nodes", missing).Msg("workflow is missing nodes")
	}

	promptID, outputs, err := runWorkflow(ctx, gen, workflow)
	if err != nil {
		return 0, err
	}

	written := 0
	for n, out := range outputs {
		data, err := gen.FetchImage(ctx, out)
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			log.Warn().Err(err).Str("image", out.Filename).Msg("download failed")
			continue
		}
		output := cleanOutputName(name, opts.Mode, seed, n)
		if err := util.WriteFile(filepath.Join(opts.OutputDir, output), data); err != nil {
			return written, err
		}
		s := seed
		if err := writer.Write(CleanEntry{
			OriginalFilename: name,
			OutputFilename:   output,
			Seed:             &s,
			Prompt:           opts.Prompt,
			Mode:             opts.Mode,
			Timestamp:        cleanNow().Format(cleanTimestampLayout),
		}); err != nil {
			return written, err
		}
		written++
		log.Info().Msgf("    -> Saved: %s", output)
	}
	if written == 0 {
		return 0, fmt.Errorf("no output of prompt %s could be downloaded", promptID)
	}
	return written, nil
}

// cleanOutputName builds {base}_{mode}_{seed}[_{n}].png.
func cleanOutputName(original, mode string, seed int64, index int) string {
	parts := []string{baseName(original), mode, strconv.FormatInt(seed, 10)}
	if index > 0 {
		parts = append(parts, strconv.Itoa(index))
	}
	return strings.Join(parts, "_") + ".png"
}
