package trigbench

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/trigbench/internal/benchmark"
	"github.com/mwiater/trigbench/internal/providers/comfy"
)

func runClean(cmd *cobra.Command) error {
	cfg := activeConfig()

	input, _ := cmd.Flags().GetString("input")
	outputDir, _ := cmd.Flags().GetString("outputDir")
	prompt, _ := cmd.Flags().GetString("prompt")
	mode, _ := cmd.Flags().GetString("mode")
	workflowPath, _ := cmd.Flags().GetString("workflow")
	server, _ := cmd.Flags().GetString("server")
	limit, _ := cmd.Flags().GetInt("limit")

	var seed *int64
	if cmd.Flags().Changed("seed") {
		v, _ := cmd.Flags().GetInt64("seed")
		seed = &v
	}
	if workflowPath == "" {
		workflowPath = cfg.Comfy.Workflow
	}
	if server == "" {
		server = cfg.Comfy.Server
	}

	workflow, err := comfy.LoadWorkflow(workflowPath)
	if err != nil {
		return err
	}
	gen, err := newGenerator(server, cfg.RequestTimeout())
	if err != nil {
		return err
	}

	stats, err := benchmark.Clean(cmd.Context(), gen, benchmark.CleanOptions{
		InputDir:  input,
		OutputDir: outputDir,
		Workflow:  workflow,
		Nodes:     cfg.Comfy.Nodes,
		Prompt:    prompt,
		Mode:      mode,
		Seed:      seed,
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Clean: %d images, %d cleaned, %d outputs, %d skipped, %d failed -> %s\n",
		stats.Images, stats.Cleaned, stats.Outputs, stats.Skipped, stats.Failed, outputDir)
	return nil
}
