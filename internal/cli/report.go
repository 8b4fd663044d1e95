package trigbench

import "github.com/spf13/cobra"

// reportCmd implements 'report', which compares evaluation results across
// models.
var reportCmd = &cobra.Command{
	Use:   "report Model=results.jsonl [Model=results.jsonl...]",
	Short: "Compare evaluation results across models",
	Long: `The 'report' command loads one results file per model and prints a
leaderboard ranked by mean error, a robustness table of mean error per attack
type and the share of adversarial samples under each accuracy threshold.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("json", "", "also write the report as JSON to this path")
}
