package trigbench

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/trigbench/internal/benchmark"
)

func runAttacks(cmd *cobra.Command) error {
	cfg := activeConfig()

	cleanMeta, _ := cmd.Flags().GetString("cleanMeta")
	originalDir, _ := cmd.Flags().GetString("originalDir")
	cleanDir, _ := cmd.Flags().GetString("cleanDir")
	output, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")
	temperature, _ := cmd.Flags().GetFloat32("temperature")
	if temperature == 0 {
		temperature = cfg.Attacks.Temperature
	}

	gen, err := newAttackGenerator(cfg.AttackClient())
	if err != nil {
		return err
	}
	stats, err := benchmark.GenerateAttacks(cmd.Context(), gen, benchmark.AttackOptions{
		CleanMeta:   cleanMeta,
		OriginalDir: originalDir,
		CleanDir:    cleanDir,
		OutputPath:  output,
		Limit:       limit,
		Temperature: temperature,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attacks: %d sources, %d generated, %d skipped, %d failed -> %s\n",
		stats.Sources, stats.Generated, stats.Skipped, stats.Failed, output)
	return nil
}
