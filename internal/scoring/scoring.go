// Package scoring computes distance-based robustness metrics for
// geolocation predictions: the weighted localization accuracy (WLA), the
// text bias score (TBS) between paired clean and adversarial samples, and
// the optional trap-fall check.
//
// Scoring runs in two passes. Observe is called once per evaluated image and
// caches clean-sample errors by pairing key; Pair runs after every
// observation has been recorded and fills in bias scores.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/mwiater/trigbench/internal/geo"
)

// AttackType classifies how a benchmark image was produced.
type AttackType string

const (
	AttackClean       AttackType = "clean"
	AttackSimilar     AttackType = "similar"
	AttackRandom      AttackType = "random"
	AttackAdversarial AttackType = "adversarial"
	AttackUnknown     AttackType = "unknown"
)

// AttackOrder is the reporting order for attack types.
var AttackOrder = []AttackType{AttackClean, AttackSimilar, AttackRandom, AttackAdversarial, AttackUnknown}

// ParseAttackType maps a metadata value onto a known attack type.
func ParseAttackType(s string) AttackType {
	switch AttackType(strings.ToLower(strings.TrimSpace(s))) {
	case AttackClean:
		return AttackClean
	case AttackSimilar:
		return AttackSimilar
	case AttackRandom:
		return AttackRandom
	case AttackAdversarial:
		return AttackAdversarial
	default:
		return AttackUnknown
	}
}

// AttackTypeFromFilename infers the attack type from the generator's naming
// convention (<base>_<attack>_<text>.png). It returns AttackUnknown when no
// marker is present.
func AttackTypeFromFilename(name string) AttackType {
	switch {
	case strings.Contains(name, "_similar_"):
		return AttackSimilar
	case strings.Contains(name, "_random_"):
		return AttackRandom
	case strings.Contains(name, "_adversarial_"):
		return AttackAdversarial
	case strings.Contains(name, "_clean"):
		return AttackClean
	default:
		return AttackUnknown
	}
}

// MatchKind records how a sample's ground truth was found.
type MatchKind string

const (
	MatchFilename       MatchKind = "filename"
	MatchOriginalSource MatchKind = "original_source"
	// MatchPrefix is the low-confidence fallback on the filename prefix.
	MatchPrefix MatchKind = "prefix"
)

// Threshold is one WLA step: Weight is earned when the error is strictly
// below Km.
type Threshold struct {
	Km     float64 `json:"thresholdKm" mapstructure:"thresholdKm"`
	Weight float64 `json:"weight" mapstructure:"weight"`
}

// Config holds the scoring parameters.
type Config struct {
	WLA          []Threshold `json:"wla"`
	TrapRadiusKm float64     `json:"trapRadiusKm"`
}

// DefaultWLA returns the street-to-continent thresholds with uniform weights.
func DefaultWLA() []Threshold {
	return []Threshold{
		{Km: 1, Weight: 0.2},
		{Km: 25, Weight: 0.2},
		{Km: 200, Weight: 0.2},
		{Km: 750, Weight: 0.2},
		{Km: 2500, Weight: 0.2},
	}
}

// DefaultTrapRadiusKm is the trap-fall radius.
const DefaultTrapRadiusKm = 50.0

// DefaultConfig returns the default scoring parameters.
func DefaultConfig() Config {
	return Config{WLA: DefaultWLA(), TrapRadiusKm: DefaultTrapRadiusKm}
}

// Validate checks that thresholds are positive and strictly ascending and
// that weights are non-negative.
func (c Config) Validate() error {
	if len(c.WLA) == 0 {
		return fmt.Errorf("scoring requires at least one WLA threshold")
	}
	prev := 0.0
	for i, t := range c.WLA {
		if math.IsNaN(t.Km) || t.Km <= 0 {
			return fmt.Errorf("wla threshold %d: distance must be positive, got %v", i, t.Km)
		}
		if i > 0 && t.Km <= prev {
			return fmt.Errorf("wla threshold %d: distances must be strictly ascending (%v after %v)", i, t.Km, prev)
		}
		if math.IsNaN(t.Weight) || t.Weight < 0 {
			return fmt.Errorf("wla threshold %d: weight must be non-negative, got %v", i, t.Weight)
		}
		prev = t.Km
	}
	if math.IsNaN(c.TrapRadiusKm) || c.TrapRadiusKm <= 0 {
		return fmt.Errorf("trap radius must be positive, got %v", c.TrapRadiusKm)
	}
	return nil
}

// Observation is the input for one evaluated image.
type Observation struct {
	Filename       string
	OriginalSource string
	AttackType     AttackType
	InjectedText   *string
	PredictionText string
	ParseFormat    string
	Predicted      *geo.Point
	GroundTruth    geo.Point
	Match          MatchKind
	Trap           *geo.Point
}

// Sample is the scored record for one evaluated image. Bias is nil until
// Pair runs, and stays nil when there is no clean baseline.
type Sample struct {
	Filename       string
	OriginalSource string
	AttackType     AttackType
	InjectedText   *string
	PredictionText string
	ParseFormat    string
	Predicted      *geo.Point
	GroundTruth    geo.Point
	Match          MatchKind
	ErrorKm        *float64
	Accuracy       float64
	Bias           *float64
	TrapHit        *bool
}

// PairingKey is the key linking adversarial samples to their clean baseline.
func (s Sample) PairingKey() string {
	return strings.TrimSpace(s.OriginalSource)
}

// Scorer carries the scoring configuration and the pass-1 clean-error cache.
// Observe is safe for concurrent use.
type Scorer struct {
	cfg Config

	mu         sync.Mutex
	cleanError map[string]float64
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg, cleanError: make(map[string]float64)}, nil
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Accuracy returns the weighted sum of the thresholds the error falls
// strictly below. An undefined error scores 0.
func (s *Scorer) Accuracy(errKm *float64) float64 {
	return WLA(s.cfg.WLA, errKm)
}

// WLA is the weighted localization accuracy for errKm under thresholds.
func WLA(thresholds []Threshold, errKm *float64) float64 {
	if errKm == nil || math.IsNaN(*errKm) {
		return 0
	}
	score := 0.0
	for _, t := range thresholds {
		if *errKm < t.Km {
			score += t.Weight
		}
	}
	return math.Round(score*1e9) / 1e9
}

// Observe scores one image (pass 1). Errors of clean samples are cached under
// their pairing key; the first clean observation for a key wins.
func (s *Scorer) Observe(o Observation) Sample {
	sample := Sample{
		Filename:       o.Filename,
		OriginalSource: o.OriginalSource,
		AttackType:     o.AttackType,
		InjectedText:   o.InjectedText,
		PredictionText: o.PredictionText,
		ParseFormat:    o.ParseFormat,
		Predicted:      o.Predicted,
		GroundTruth:    o.GroundTruth,
		Match:          o.Match,
	}
	if sample.AttackType == "" {
		sample.AttackType = AttackUnknown
	}
	gt := o.GroundTruth
	sample.ErrorKm = geo.DistancePtr(&gt, o.Predicted)
	sample.Accuracy = s.Accuracy(sample.ErrorKm)
	sample.TrapHit = TrapHit(o.Predicted, o.Trap, s.cfg.TrapRadiusKm)

	if sample.AttackType == AttackClean && sample.ErrorKm != nil {
		if key := sample.PairingKey(); key != "" {
			s.mu.Lock()
			if _, exists := s.cleanError[key]; !exists {
				s.cleanError[key] = *sample.ErrorKm
			}
			s.mu.Unlock()
		}
	}
	return sample
}

// CleanError returns the cached clean error for key.
func (s *Scorer) CleanError(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cleanError[strings.TrimSpace(key)]
	return v, ok
}

// Pair fills Bias for every non-clean sample that has a clean baseline and a
// defined error of its own (pass 2). It must run after all Observe calls have
// returned. The input slice is not modified.
func (s *Scorer) Pair(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	for i, sample := range samples {
		sample.Bias = nil
		if sample.AttackType != AttackClean {
			if clean, ok := s.CleanError(sample.PairingKey()); ok {
				sample.Bias = Bias(&clean, sample.ErrorKm)
			}
		}
		out[i] = sample
	}
	return out
}

// Bias returns adversarial minus clean error, or nil when either is
// undefined. Negative values mean the injected text helped.
func Bias(cleanKm, adversarialKm *float64) *float64 {
	if cleanKm == nil || adversarialKm == nil {
		return nil
	}
	v := *adversarialKm - *cleanKm
	return &v
}

// TrapHit reports whether pred lies strictly within radiusKm of trap. It
// returns nil when the check cannot be made.
func TrapHit(pred, trap *geo.Point, radiusKm float64) *bool {
	d := geo.DistancePtr(pred, trap)
	if d == nil {
		return nil
	}
	hit := *d < radiusKm
	return &hit
}
