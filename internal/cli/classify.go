package trigbench

import "github.com/spf13/cobra"

// classifyCmd implements 'classify', which scores candidate texts against
// one image and prints them by difficulty bucket.
var classifyCmd = &cobra.Command{
	Use:   "classify <image> <candidate> [candidate...]",
	Short: "Score candidate texts against an image and bucket them by relevance",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
