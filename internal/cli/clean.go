package trigbench

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/trigbench/internal/benchmark"
)

// cleanCmd implements 'clean', the first pipeline stage: erasing scene text
// from raw images before distractors are added.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove existing text from raw images",
	Long: `The 'clean' command uploads every image in --input to the image generation
server with a text-removal prompt and saves the results as
{name}_{mode}_{seed}.png together with metadata.jsonl. Pass that file to
'attacks --cleanMeta'. Images already listed in the metadata are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClean(cmd)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().String("input", "", "directory of raw images")
	cleanCmd.Flags().String("outputDir", "clean", "directory for clean images and metadata.jsonl")
	cleanCmd.Flags().String("prompt", benchmark.DefaultCleanPrompt, "edit prompt sent with each image")
	cleanCmd.Flags().String("mode", benchmark.CleanModes[0], "label recorded in names and metadata (remove, inpaint, custom)")
	cleanCmd.Flags().Int64("seed", 0, "fixed seed for every image (random per image when unset)")
	cleanCmd.Flags().String("workflow", "", "workflow template JSON (defaults to comfy.workflow)")
	cleanCmd.Flags().String("server", "", "generation server host:port (defaults to comfy.server)")
	cleanCmd.Flags().Int("limit", 0, "process at most this many images (0 = all)")
	_ = cleanCmd.MarkFlagRequired("input")
}
