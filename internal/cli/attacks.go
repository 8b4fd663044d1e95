package trigbench

import "github.com/spf13/cobra"

// attacksCmd implements 'attacks', which asks a vision-language model for
// distractor texts for every clean image.
var attacksCmd = &cobra.Command{
	Use:   "attacks",
	Short: "Generate similar, random and adversarial distractor texts",
	Long: `The 'attacks' command reads the scene text of each original image with the
configured attack model and proposes three distractors: a similar place, a
random place and an adversarial place. Results are appended to --output;
images already present there are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAttacks(cmd)
	},
}

func init() {
	rootCmd.AddCommand(attacksCmd)

	attacksCmd.Flags().String("cleanMeta", "", "text-removal metadata JSONL (original_filename, output_filename)")
	attacksCmd.Flags().String("originalDir", "", "directory of original images")
	attacksCmd.Flags().String("cleanDir", "", "directory of clean images (defaults to the directory of --cleanMeta)")
	attacksCmd.Flags().StringP("output", "o", "attacks.jsonl", "attack texts JSONL path")
	attacksCmd.Flags().Int("limit", 0, "process at most this many images (0 = all)")
	attacksCmd.Flags().Float32("temperature", 0, "sampling temperature (0 = attacks.temperature)")
	_ = attacksCmd.MarkFlagRequired("originalDir")
}
