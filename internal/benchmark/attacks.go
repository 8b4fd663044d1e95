package benchmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/providers"
	"github.com/mwiater/trigbench/internal/providers/vlm"
)

// DefaultAttackTemperature keeps attack proposals varied.
const DefaultAttackTemperature float32 = 0.7

// AttackGenerator proposes distractor texts for an image.
type AttackGenerator interface {
	GenerateAttacks(ctx context.Context, image []byte, mime string, temperature float32) (vlm.Attacks, error)
}

// CleanEntry is one line of the text-removal step's metadata: the original
// image and the clean copy made from it. Clean writes these; GenerateAttacks
// only needs the two filenames.
type CleanEntry struct {
	OriginalFilename string `json:"original_filename"`
	OutputFilename   string `json:"output_filename"`
	Seed             *int64 `json:"seed,omitempty"`
	Prompt           string `json:"prompt,omitempty"`
	Mode             string `json:"mode,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
}

// AttackOptions control attack generation. Without CleanMeta every image in
// OriginalDir is used and its clean copy is expected under the same name in
// CleanDir.
type AttackOptions struct {
	CleanMeta   string
	OriginalDir string
	CleanDir    string
	OutputPath  string
	Limit       int
	Temperature float32
}

// AttackStats counts what one run did.
type AttackStats struct {
	Sources   int
	Skipped   int
	Generated int
	Failed    int
}

func attackSources(opts AttackOptions) ([]CleanEntry, string, error) {
	cleanDir := opts.CleanDir
	if opts.CleanMeta != "" {
		entries, stats, err := dataset.ReadJSONLFile[CleanEntry](opts.CleanMeta, nil)
		if err != nil {
			return nil, "", err
		}
		if stats.Skipped > 0 {
			log := logging.Logger()
			log.Warn().Str("file", opts.CleanMeta).Int("skipped", stats.Skipped).Msg("ignored unreadable clean metadata lines")
		}
		if cleanDir == "" {
			cleanDir = filepath.Dir(opts.CleanMeta)
		}
		out := entries[:0]
		for _, e := range entries {
			if strings.TrimSpace(e.OriginalFilename) == "" {
				continue
			}
			if e.OutputFilename == "" {
				e.OutputFilename = e.OriginalFilename
			}
			out = append(out, e)
		}
		return out, cleanDir, nil
	}

	files, err := dataset.ListImages(opts.OriginalDir, nil)
	if err != nil {
		return nil, "", err
	}
	if cleanDir == "" {
		cleanDir = opts.OriginalDir
	}
	out := make([]CleanEntry, len(files))
	for i, name := range files {
		out[i] = CleanEntry{OriginalFilename: name, OutputFilename: name}
	}
	return out, cleanDir, nil
}

// completedAttacks returns the originals already present in an existing
// attacks file.
func completedAttacks(path string) (map[string]bool, error) {
	records, _, err := dataset.LoadAttacks(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(records))
	for _, r := range records {
		done[r.OriginalFilename] = true
	}
	return done, nil
}

// GenerateAttacks asks gen for distractors for each original image and
// appends one record per image to opts.OutputPath. Images already in the
// output are skipped, so an interrupted run can be restarted. Per-image
// failures are logged and counted.
func GenerateAttacks(ctx context.Context, gen AttackGenerator, opts AttackOptions) (AttackStats, error) {
	var stats AttackStats
	if gen == nil {
		return stats, errors.New("attack generation requires a model client")
	}
	if opts.OriginalDir == "" {
		return stats, errors.New("original image directory is required")
	}
	if opts.OutputPath == "" {
		return stats, errors.New("attack output path is required")
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultAttackTemperature
	}

	sources, cleanDir, err := attackSources(opts)
	if err != nil {
		return stats, err
	}
	done, err := completedAttacks(opts.OutputPath)
	if err != nil {
		return stats, err
	}
	writer, err := dataset.OpenWriter(opts.OutputPath, false)
	if err != nil {
		return stats, err
	}
	defer writer.Close()

	log := logging.Logger()
	log.Info().Int("entries", len(sources)).Int("done", len(done)).Msg("generating attack texts")

	for i, src := range sources {
		if opts.Limit > 0 && stats.Sources >= opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("attack generation interrupted: %w", err)
		}
		if done[src.OriginalFilename] {
			stats.Skipped++
			continue
		}
		stats.Sources++

		image, err := os.ReadFile(filepath.Join(opts.OriginalDir, src.OriginalFilename))
		if err != nil {
			stats.Failed++
			log.Warn().Err(err).Str("file", src.OriginalFilename).Msg("original image not readable")
			continue
		}
		log.Info().Msgf("[%d/%d] Analyzing %s...", i+1, len(sources), src.OriginalFilename)

		attacks, err := gen.GenerateAttacks(ctx, image, providers.DetectImageMIME(image), opts.Temperature)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("attack generation interrupted: %w", ctx.Err())
			}
			stats.Failed++
			log.Warn().Err(err).Str("file", src.OriginalFilename).Msg("attack generation failed")
			continue
		}

		record := dataset.AttackRecord{
			OriginalFilename: src.OriginalFilename,
			CleanImagePath:   src.OutputFilename,
			ImagePath:        filepath.Join(cleanDir, src.OutputFilename),
			DetectedText:     attacks.OriginalText,
			Attacks:          attacks.Attacks,
		}
		if err := writer.Write(record); err != nil {
			return stats, err
		}
		done[src.OriginalFilename] = true
		stats.Generated++
	}

	log.Info().Int("generated", stats.Generated).Int("failed", stats.Failed).Int("skipped", stats.Skipped).Str("output", opts.OutputPath).Msg("attack generation complete")
	return stats, nil
}
