package trigbench

import (
	"time"

	"github.com/mwiater/trigbench/internal/appconfig"
	"github.com/mwiater/trigbench/internal/benchmark"
	"github.com/mwiater/trigbench/internal/distractor"
	"github.com/mwiater/trigbench/internal/evaluation"
	"github.com/mwiater/trigbench/internal/providers/clip"
	"github.com/mwiater/trigbench/internal/providers/comfy"
	"github.com/mwiater/trigbench/internal/providers/detector"
	"github.com/mwiater/trigbench/internal/providers/vlm"
	"github.com/mwiater/trigbench/internal/relevance"
)

// Client constructors are variables so command tests can swap in fakes.
var (
	newPredictor = func(cfg vlm.Config) (evaluation.Predictor, error) {
		return vlm.New(cfg)
	}
	newAttackGenerator = func(cfg vlm.Config) (benchmark.AttackGenerator, error) {
		return vlm.New(cfg)
	}
	newOracle = func(url string, timeout time.Duration) (relevance.Oracle, error) {
		return clip.New(url, timeout)
	}
	newGenerator = func(server string, timeout time.Duration) (benchmark.Generator, error) {
		return comfy.New(server, timeout)
	}
	newObjectDetector = func(url string, timeout time.Duration) (distractor.Detector, error) {
		return detector.New(url, timeout)
	}
)

// detectorFor returns nil when no detector is configured, so object-anchored
// tasks degrade to free placement.
func detectorFor(cfg appconfig.Config) (distractor.Detector, error) {
	if cfg.Detector.URL == "" {
		return nil, nil
	}
	return newObjectDetector(cfg.Detector.URL, cfg.RequestTimeout())
}

func classifierFor(cfg appconfig.Config) (*relevance.Classifier, error) {
	return relevance.NewClassifier(cfg.RelevanceThresholds())
}
