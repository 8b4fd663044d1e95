// internal/cli/show_config.go
package trigbench

import (
	"github.com/spf13/cobra"
)

// showConfigCmd implements 'show config', which prints the merged
// configuration.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the JSON configs are loaded properly and overridden by flags and TRIG_ environment variables accordingly.`,
	Run: func(cmd *cobra.Command, args []string) {
		runShowConfig(cmd)
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
}
