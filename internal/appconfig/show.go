package appconfig

import (
	"fmt"
	"io"
	"strings"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Debug:              %v\n", cfg.Debug)
	fmt.Fprintf(out, "  JSON Mode:          %v\n", cfg.JSONMode)
	fmt.Fprintf(out, "  Log File:           %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Workers:            %d\n", cfg.Workers)
	fmt.Fprintf(out, "  Request Timeout:    %s\n", cfg.RequestTimeout())

	fmt.Fprintln(out, "\nInference:")
	fmt.Fprintf(out, "  Base URL:           %s\n", cfg.Inference.BaseURL)
	fmt.Fprintf(out, "  Model:              %s\n", orUnset(cfg.Inference.Model))
	fmt.Fprintf(out, "  Max Tokens:         %d\n", cfg.Inference.MaxTokens)
	fmt.Fprintf(out, "  Temperature:        %.2f\n", cfg.Inference.Temperature)
	attack := cfg.AttackClient()
	fmt.Fprintf(out, "  Attack Model:       %s (temperature %.2f)\n", orUnset(attack.Model), attack.Temperature)

	fmt.Fprintln(out, "\nRelevance:")
	fmt.Fprintf(out, "  Hard Threshold:     %.2f\n", cfg.Relevance.HardThreshold)
	fmt.Fprintf(out, "  Mid Threshold:      %.2f\n", cfg.Relevance.MidThreshold)
	fmt.Fprintf(out, "  Prompt Template:    %q\n", cfg.Relevance.PromptTemplate)
	fmt.Fprintf(out, "  Embedding URL:      %s\n", orUnset(cfg.Embedding.URL))

	fmt.Fprintln(out, "\nScoring:")
	steps := make([]string, 0, len(cfg.Scoring.WLA))
	for _, t := range cfg.Scoring.WLA {
		steps = append(steps, fmt.Sprintf("<%gkm:%g", t.Km, t.Weight))
	}
	fmt.Fprintf(out, "  WLA:                %s\n", strings.Join(steps, " "))
	fmt.Fprintf(out, "  Trap Radius:        %g km\n", cfg.Scoring.TrapRadiusKm)

	fmt.Fprintln(out, "\nGeneration:")
	fmt.Fprintf(out, "  ComfyUI Server:     %s\n", cfg.Comfy.Server)
	fmt.Fprintf(out, "  Workflow:           %s\n", cfg.Comfy.Workflow)
	fmt.Fprintf(out, "  Nodes:              image=%s prompt=%s sampler=%s\n", cfg.Comfy.Nodes.LoadImage, cfg.Comfy.Nodes.Prompt, cfg.Comfy.Nodes.Sampler)
	fmt.Fprintf(out, "  Detector URL:       %s\n", orUnset(cfg.Detector.URL))
	fmt.Fprintf(out, "  Strategies:         %s\n", strings.Join(cfg.Injection.Strategies, ", "))
	fmt.Fprintf(out, "  Target Classes:     %s\n", strings.Join(cfg.Injection.TargetClasses, ", "))
}

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unset)"
	}
	return s
}
