// Package benchmark builds the adversarial image set. It asks a
// vision-language model for distractor texts, ranks candidates into
// relevance-tiered injection tasks and drives the image generator, writing
// benchmark_meta.jsonl beside the generated images.
package benchmark

import (
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mwiater/trigbench/internal/util"
)

// MetaFileName is the metadata file written into the output directory.
const MetaFileName = "benchmark_meta.jsonl"

// EditPrompt asks the generator to add text anywhere in the scene.
const EditPrompt = "Add the text '%s' to the image naturally. Maintain photorealism."

// AnchoredEditPrompt asks the generator to put the text on a detected object.
const AnchoredEditPrompt = "Add the text '%s' onto the %s in the image naturally. Maintain photorealism."

const maxSeed = 100_000_000_000_000

var (
	newSeed   = func() int64 { return rand.Int64N(maxSeed) + 1 }
	newTaskID = uuid.NewString
)

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// outputName builds {base}_{attack}_{text}[_{strategy}][_{n}].png. The
// attack infix keeps the type recoverable from the name alone.
func outputName(original, attack, text, strategy string, index int) string {
	parts := []string{baseName(original), attack, util.FileComponent(text)}
	if strategy != "" {
		parts = append(parts, strategy)
	}
	if index > 0 {
		parts = append(parts, strconv.Itoa(index))
	}
	return strings.Join(parts, "_") + ".png"
}

// cleanName is the name of the clean copy placed next to generated images.
func cleanName(original, cleanPath string) string {
	ext := filepath.Ext(cleanPath)
	if ext == "" {
		ext = filepath.Ext(original)
	}
	return baseName(original) + "_clean" + ext
}
