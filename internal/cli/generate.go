package trigbench

import "github.com/spf13/cobra"

// generateCmd implements 'generate', which renders the benchmark images
// through the image-edit workflow.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render benchmark images from attack texts and planned tasks",
	Long: `The 'generate' command uploads each clean image to the image generation
server, fills the workflow template with an edit prompt per distractor, waits
for completion and saves the outputs together with benchmark_meta.jsonl.
Attack records yield one image per attack type; planned tasks yield one
adversarial image per task, anchored on a detected object when requested.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("attacks", "", "attack texts JSONL")
	generateCmd.Flags().String("tasks", "", "planned tasks JSONL")
	generateCmd.Flags().String("outputDir", "benchmark", "directory for generated images and metadata")
	generateCmd.Flags().String("workflow", "", "workflow template JSON (defaults to comfy.workflow)")
	generateCmd.Flags().String("server", "", "generation server host:port (defaults to comfy.server)")
	generateCmd.Flags().Int("limit", 0, "process at most this many clean images (0 = all)")
	generateCmd.Flags().Bool("include-clean", true, "copy each clean image into the benchmark as a clean sample")
}
