package trigbench

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/trigbench/internal/benchmark"
	"github.com/mwiater/trigbench/internal/distractor"
	"github.com/mwiater/trigbench/internal/relevance"
)

func runClassify(cmd *cobra.Command, args []string) error {
	cfg := activeConfig()

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("error reading image: %w", err)
	}
	oracle, err := newOracle(cfg.Embedding.URL, cfg.RequestTimeout())
	if err != nil {
		return err
	}
	classifier, err := classifierFor(cfg)
	if err != nil {
		return err
	}
	buckets, err := benchmark.Classify(cmd.Context(), oracle, classifier, image, args[1:], cfg.Relevance.PromptTemplate)
	if err != nil {
		return err
	}
	selected := distractor.Select(buckets)

	out := cmd.OutOrStdout()
	if JSONModeEnabled() {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Buckets  relevance.Buckets     `json:"buckets"`
			Selected []distractor.Selected `json:"selected"`
		}{buckets, selected})
	}

	thresholds := classifier.Thresholds()
	fmt.Fprintf(out, "Relevance buckets (hard > %.2f, mid > %.2f):\n", thresholds.Hard, thresholds.Mid)
	for _, bucket := range relevance.Order {
		list := buckets.Get(bucket)
		parts := make([]string, 0, len(list))
		for _, c := range list {
			parts = append(parts, fmt.Sprintf("%s (%.4f)", c.Text, c.Score))
		}
		if len(parts) == 0 {
			parts = append(parts, "-")
		}
		fmt.Fprintf(out, "  %-5s %s\n", bucket+":", strings.Join(parts, ", "))
	}
	for _, s := range selected {
		fmt.Fprintf(out, "Selected %s: %s\n", s.Bucket, s.Text)
	}
	return nil
}
