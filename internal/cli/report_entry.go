package trigbench

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/mwiater/trigbench/internal/report"
	"github.com/mwiater/trigbench/internal/util"
)

func runReport(cmd *cobra.Command, args []string) error {
	cfg := activeConfig()
	jsonPath, _ := cmd.Flags().GetString("json")

	inputs, err := report.ParseInputs(args)
	if err != nil {
		return err
	}
	models, err := report.Load(inputs)
	if err != nil {
		return err
	}
	r := report.Build(models, cfg.Scoring.WLA)

	if jsonPath != "" {
		var buf bytes.Buffer
		if err := report.WriteJSON(&buf, r); err != nil {
			return err
		}
		if err := util.WriteFile(jsonPath, buf.Bytes()); err != nil {
			return err
		}
	}
	if JSONModeEnabled() {
		return report.WriteJSON(cmd.OutOrStdout(), r)
	}
	return report.Render(cmd.OutOrStdout(), r)
}
