package trigbench

import "github.com/spf13/cobra"

// planCmd implements 'plan', which turns attack texts into generation tasks:
// classify, select one distractor per bucket, expand over strategies.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan distractor injection tasks from attack texts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("attacks", "attacks.jsonl", "attack texts JSONL")
	planCmd.Flags().String("candidates", "", "file of extra candidate texts, one per line, scored for every image")
	planCmd.Flags().StringP("output", "o", "tasks.jsonl", "task JSONL path (replaced)")
	planCmd.Flags().Int("limit", 0, "plan at most this many images (0 = all)")
}
