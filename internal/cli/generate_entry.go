package trigbench

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/trigbench/internal/benchmark"
	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/distractor"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/providers/comfy"
)

func runGenerate(cmd *cobra.Command) error {
	cfg := activeConfig()
	log := logging.Logger()

	attacksPath, _ := cmd.Flags().GetString("attacks")
	tasksPath, _ := cmd.Flags().GetString("tasks")
	outputDir, _ := cmd.Flags().GetString("outputDir")
	workflowPath, _ := cmd.Flags().GetString("workflow")
	server, _ := cmd.Flags().GetString("server")
	limit, _ := cmd.Flags().GetInt("limit")
	includeClean, _ := cmd.Flags().GetBool("include-clean")

	if attacksPath == "" && tasksPath == "" {
		return errors.New("at least one of --attacks or --tasks is required")
	}
	if workflowPath == "" {
		workflowPath = cfg.Comfy.Workflow
	}
	if server == "" {
		server = cfg.Comfy.Server
	}

	var attacks []dataset.AttackRecord
	if attacksPath != "" {
		records, stats, err := dataset.LoadAttacks(attacksPath)
		if err != nil {
			return err
		}
		log.Info().Str("file", attacksPath).Str("stats", stats.String()).Msg("loaded attack texts")
		attacks = records
	}
	var tasks []distractor.Task
	if tasksPath != "" {
		loaded, stats, err := benchmark.LoadTasks(tasksPath)
		if err != nil {
			return err
		}
		log.Info().Str("file", tasksPath).Str("stats", stats.String()).Msg("loaded tasks")
		tasks = loaded
	}

	workflow, err := comfy.LoadWorkflow(workflowPath)
	if err != nil {
		return err
	}
	gen, err := newGenerator(server, cfg.RequestTimeout())
	if err != nil {
		return err
	}
	det, err := detectorFor(cfg)
	if err != nil {
		return err
	}

	stats, err := benchmark.Generate(cmd.Context(), gen, det, benchmark.GenerateOptions{
		Attacks:      attacks,
		Tasks:        tasks,
		Workflow:     workflow,
		Nodes:        cfg.Comfy.Nodes,
		OutputDir:    outputDir,
		Limit:        limit,
		IncludeClean: includeClean,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Generate: %d sources, %d jobs, %d images, %d clean, %d degraded, %d failed -> %s\n",
		stats.Sources, stats.Jobs, stats.Images, stats.Clean, stats.Degraded, stats.Failed, outputDir)
	return nil
}
