package trigbench

import "github.com/spf13/cobra"

// evaluateCmd implements 'evaluate', which runs the configured model over a
// benchmark image directory and scores every prediction.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a geolocation model on a benchmark image set",
	Long: `The 'evaluate' command sends every image in --imgDir to the configured
inference endpoint, parses the predicted coordinates and scores them against
the ground truth table. Adversarial samples are paired with their clean source
through the benchmark metadata to compute the text-induced bias.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("imgDir", "", "directory of benchmark images")
	evaluateCmd.Flags().String("groundTruth", "", "ground truth TSV (photo id, lon, lat, url columns)")
	evaluateCmd.Flags().String("benchMeta", "", "benchmark metadata JSONL (defaults to <imgDir>/benchmark_meta.jsonl when present)")
	evaluateCmd.Flags().StringP("output", "o", "", "results JSONL path")
	evaluateCmd.Flags().StringP("model", "m", "", "model name (overrides inference.model)")
	evaluateCmd.Flags().Int("limit", 0, "evaluate at most this many images (0 = all)")
	evaluateCmd.Flags().Bool("resume", false, "continue from the partial results of an interrupted run")
	evaluateCmd.Flags().String("traps", "", "trap coordinates TSV (filename, lat, lon); enables the trap fall rate")
	evaluateCmd.Flags().String("metricsFile", "", "write Prometheus textfile metrics to this path")
	evaluateCmd.Flags().String("statsFile", "", "write per-attack statistics JSON to this path")
	evaluateCmd.Flags().Bool("tui", false, "show an interactive progress view")
	_ = evaluateCmd.MarkFlagRequired("imgDir")
	_ = evaluateCmd.MarkFlagRequired("groundTruth")
	_ = evaluateCmd.MarkFlagRequired("output")
}
