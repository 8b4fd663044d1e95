package trigbench

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/trigbench/internal/benchmark"
	"github.com/mwiater/trigbench/internal/dataset"
	"github.com/mwiater/trigbench/internal/logging"
)

func runPlan(cmd *cobra.Command) error {
	cfg := activeConfig()

	attacksPath, _ := cmd.Flags().GetString("attacks")
	candidatesPath, _ := cmd.Flags().GetString("candidates")
	output, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")

	records, stats, err := dataset.LoadAttacks(attacksPath)
	if err != nil {
		return err
	}
	log := logging.Logger()
	log.Info().Str("file", attacksPath).Str("stats", stats.String()).Msg("loaded attack texts")

	candidates, err := readCandidates(candidatesPath)
	if err != nil {
		return err
	}
	strategies, err := cfg.Strategies()
	if err != nil {
		return err
	}
	oracle, err := newOracle(cfg.Embedding.URL, cfg.RequestTimeout())
	if err != nil {
		return err
	}
	classifier, err := classifierFor(cfg)
	if err != nil {
		return err
	}

	planned, err := benchmark.Plan(cmd.Context(), oracle, classifier, records, benchmark.PlanOptions{
		Candidates: candidates,
		Template:   cfg.Relevance.PromptTemplate,
		Strategies: strategies,
		OutputPath: output,
		Limit:      limit,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Plan: %d images, %d tasks, %d skipped, %d failed -> %s\n",
		planned.Images, planned.Tasks, planned.Skipped, planned.Failed, output)
	return nil
}

// readCandidates reads one candidate per line. Blank lines and lines
// starting with # are ignored. An empty path yields no candidates.
func readCandidates(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening candidates: %w", err)
	}
	defer file.Close()

	var out []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading candidates: %w", err)
	}
	return out, nil
}
