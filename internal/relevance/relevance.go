// Package relevance buckets candidate distractor texts by how semantically
// close they are to an image, using similarity scores from an external
// embedding oracle.
package relevance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Bucket is a difficulty tier for a distractor text.
type Bucket string

const (
	Hard Bucket = "hard"
	Mid  Bucket = "mid"
	Easy Bucket = "easy"
)

// Order is the fixed order in which buckets are reported and selected.
var Order = []Bucket{Hard, Mid, Easy}

// DefaultPromptTemplate wraps a candidate before it is scored.
const DefaultPromptTemplate = "A photo of %s"

// CandidateScore is the cosine similarity between one candidate text and one
// image.
type CandidateScore struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Thresholds are the strict lower bounds for the hard and mid buckets.
type Thresholds struct {
	Hard float64 `json:"hardThreshold"`
	Mid  float64 `json:"midThreshold"`
}

// DefaultThresholds returns the calibrated CLIP ViT-B/32 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Hard: 0.28, Mid: 0.20}
}

// Validate reports whether the thresholds define three non-empty ranges.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Hard) || math.IsNaN(t.Mid) {
		return fmt.Errorf("relevance thresholds must be numbers")
	}
	if t.Hard <= t.Mid {
		return fmt.Errorf("hard threshold %.4f must be greater than mid threshold %.4f", t.Hard, t.Mid)
	}
	return nil
}

// BucketFor assigns a score to a bucket. A score equal to a threshold falls
// to the lower bucket.
func (t Thresholds) BucketFor(score float64) Bucket {
	switch {
	case score > t.Hard:
		return Hard
	case score > t.Mid:
		return Mid
	default:
		return Easy
	}
}

// Buckets holds classified candidates, each list sorted by descending score.
type Buckets struct {
	Hard []CandidateScore `json:"hard"`
	Mid  []CandidateScore `json:"mid"`
	Easy []CandidateScore `json:"easy"`
}

// Get returns the candidates for b.
func (b Buckets) Get(bucket Bucket) []CandidateScore {
	switch bucket {
	case Hard:
		return b.Hard
	case Mid:
		return b.Mid
	case Easy:
		return b.Easy
	}
	return nil
}

// Len returns the number of classified candidates.
func (b Buckets) Len() int {
	return len(b.Hard) + len(b.Mid) + len(b.Easy)
}

// Classifier buckets scored candidates. It is safe for concurrent use.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier returns a Classifier after validating t.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t}, nil
}

// Thresholds returns the classifier's thresholds.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify assigns every candidate with a finite score to exactly one bucket.
// Within a bucket, candidates are ordered by score descending; equal scores
// keep their input order.
func (c *Classifier) Classify(scores []CandidateScore) Buckets {
	var out Buckets
	for _, s := range scores {
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			continue
		}
		switch c.thresholds.BucketFor(s.Score) {
		case Hard:
			out.Hard = append(out.Hard, s)
		case Mid:
			out.Mid = append(out.Mid, s)
		default:
			out.Easy = append(out.Easy, s)
		}
	}
	sortDescending(out.Hard)
	sortDescending(out.Mid)
	sortDescending(out.Easy)
	return out
}

func sortDescending(list []CandidateScore) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})
}

// FromMap converts a text→score mapping into a slice ordered by text so that
// classification over a map is deterministic.
func FromMap(scores map[string]float64) []CandidateScore {
	texts := make([]string, 0, len(scores))
	for text := range scores {
		texts = append(texts, text)
	}
	sort.Strings(texts)
	out := make([]CandidateScore, 0, len(texts))
	for _, text := range texts {
		out = append(out, CandidateScore{Text: text, Score: scores[text]})
	}
	return out
}

// Oracle returns a similarity score in [-1,1] for each text against an image.
type Oracle interface {
	Similarity(ctx context.Context, image []byte, texts []string) (map[string]float64, error)
}

// Score wraps each candidate in template, asks the oracle for similarities and
// maps the results back to the original candidate text in input order.
// Candidates are NFKC-normalized and blanks or duplicates dropped.
func Score(ctx context.Context, oracle Oracle, image []byte, candidates []string, template string) ([]CandidateScore, error) {
	if oracle == nil {
		return nil, fmt.Errorf("embedding oracle is nil")
	}
	if strings.TrimSpace(template) == "" || !strings.Contains(template, "%s") {
		template = DefaultPromptTemplate
	}

	texts := NormalizeCandidates(candidates)
	if len(texts) == 0 {
		return nil, nil
	}
	prompts := make([]string, len(texts))
	for i, text := range texts {
		prompts[i] = fmt.Sprintf(template, text)
	}

	scores, err := oracle.Similarity(ctx, image, prompts)
	if err != nil {
		return nil, fmt.Errorf("embedding oracle: %w", err)
	}

	out := make([]CandidateScore, 0, len(texts))
	for i, text := range texts {
		score, ok := scores[prompts[i]]
		if !ok {
			continue
		}
		out = append(out, CandidateScore{Text: text, Score: score})
	}
	return out, nil
}

// NormalizeCandidates applies NFKC normalization, trims whitespace and drops
// empty and repeated entries while preserving order.
func NormalizeCandidates(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		text := strings.TrimSpace(norm.NFKC.String(c))
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}
