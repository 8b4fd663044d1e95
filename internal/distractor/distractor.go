// Package distractor picks one representative distractor per difficulty
// bucket and expands the picks against physical injection strategies into
// generation tasks.
package distractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiater/trigbench/internal/relevance"
)

// Selected is the top-ranked candidate of one bucket.
type Selected struct {
	Bucket relevance.Bucket `json:"semantic_difficulty"`
	Text   string           `json:"injected_text"`
	Score  float64          `json:"relevance_score"`
}

// Select takes the first candidate of each non-empty bucket in the order
// hard, mid, easy.
func Select(b relevance.Buckets) []Selected {
	out := make([]Selected, 0, len(relevance.Order))
	for _, bucket := range relevance.Order {
		list := b.Get(bucket)
		if len(list) == 0 {
			continue
		}
		out = append(out, Selected{Bucket: bucket, Text: list[0].Text, Score: list[0].Score})
	}
	return out
}

// StrategyKind names how injected text is placed in the image.
type StrategyKind string

const (
	// ObjectAnchored places text on the largest detected target object.
	ObjectAnchored StrategyKind = "object"
	// FreePlacement places text anywhere in the scene.
	FreePlacement StrategyKind = "free"
)

// Strategy is one physical injection strategy.
type Strategy struct {
	Kind          StrategyKind `json:"kind"`
	TargetClasses []string     `json:"targetClasses,omitempty"`
}

// DefaultTargetClasses are the detector classes that commonly carry text.
var DefaultTargetClasses = []string{"car", "bus", "truck", "stop sign", "bench", "train"}

// DefaultStrategies returns object-anchored and free placement.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Kind: ObjectAnchored, TargetClasses: append([]string(nil), DefaultTargetClasses...)},
		{Kind: FreePlacement},
	}
}

// ParseStrategies converts configured names into strategies. Object-anchored
// strategies receive targetClasses, or the defaults when empty.
func ParseStrategies(names []string, targetClasses []string) ([]Strategy, error) {
	if len(names) == 0 {
		return DefaultStrategies(), nil
	}
	if len(targetClasses) == 0 {
		targetClasses = DefaultTargetClasses
	}
	seen := make(map[StrategyKind]bool, len(names))
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		kind := StrategyKind(strings.ToLower(strings.TrimSpace(name)))
		if seen[kind] {
			continue
		}
		switch kind {
		case ObjectAnchored:
			out = append(out, Strategy{Kind: kind, TargetClasses: append([]string(nil), targetClasses...)})
		case FreePlacement:
			out = append(out, Strategy{Kind: kind})
		default:
			return nil, fmt.Errorf("unknown injection strategy %q (want %q or %q)", name, ObjectAnchored, FreePlacement)
		}
		seen[kind] = true
	}
	return out, nil
}

// Task is one image generation job: a selected distractor placed with one
// strategy.
type Task struct {
	ID                string           `json:"task_id,omitempty"`
	Image             string           `json:"image"`
	OriginalSource    string           `json:"original_source"`
	Bucket            relevance.Bucket `json:"semantic_difficulty"`
	Text              string           `json:"injected_text"`
	Score             float64          `json:"relevance_score"`
	RequestedStrategy StrategyKind     `json:"physical_level"`
	TargetClasses     []string         `json:"target_classes,omitempty"`
	AchievedStrategy  StrategyKind     `json:"achieved_strategy,omitempty"`
	Degraded          bool             `json:"degraded,omitempty"`
}

// Expand forms the cartesian product selections × strategies. The outer loop
// runs over selections so tasks for one distractor stay adjacent.
func Expand(image, originalSource string, selections []Selected, strategies []Strategy) []Task {
	tasks := make([]Task, 0, len(selections)*len(strategies))
	for _, sel := range selections {
		for _, strategy := range strategies {
			tasks = append(tasks, Task{
				Image:             image,
				OriginalSource:    originalSource,
				Bucket:            sel.Bucket,
				Text:              sel.Text,
				Score:             sel.Score,
				RequestedStrategy: strategy.Kind,
				TargetClasses:     append([]string(nil), strategy.TargetClasses...),
			})
		}
	}
	return tasks
}

// Box is one detection in pixel coordinates.
type Box struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// Area returns the box area; degenerate boxes have zero area.
func (b Box) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detector finds boxes of the given classes in an image.
type Detector interface {
	Detect(ctx context.Context, image []byte, classes []string) ([]Box, error)
}

// BestBox returns the largest box whose class is one of classes. Among equal
// areas the earlier box wins.
func BestBox(boxes []Box, classes []string) (Box, bool) {
	wanted := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		wanted[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	var best Box
	found := false
	for _, b := range boxes {
		if _, ok := wanted[strings.ToLower(strings.TrimSpace(b.Class))]; !ok {
			continue
		}
		if b.Area() <= 0 {
			continue
		}
		if !found || b.Area() > best.Area() {
			best = b
			found = true
		}
	}
	return best, found
}

// Resolve records the strategy actually achieved for t. An object-anchored
// task without a target box degrades to free placement; the requested
// strategy is never rewritten.
func Resolve(t Task, found bool) Task {
	t.AchievedStrategy = t.RequestedStrategy
	t.Degraded = false
	if t.RequestedStrategy == ObjectAnchored && !found {
		t.AchievedStrategy = FreePlacement
		t.Degraded = true
	}
	return t
}

// Locate consults the detector for object-anchored tasks and returns the
// resolved task together with the anchor box, if any. Detector errors are
// treated as "no object found".
func Locate(ctx context.Context, d Detector, t Task, image []byte) (Task, *Box, error) {
	if t.RequestedStrategy != ObjectAnchored {
		return Resolve(t, false), nil, nil
	}
	if d == nil {
		return Resolve(t, false), nil, nil
	}
	boxes, err := d.Detect(ctx, image, t.TargetClasses)
	if err != nil {
		return Resolve(t, false), nil, err
	}
	box, ok := BestBox(boxes, t.TargetClasses)
	if !ok {
		return Resolve(t, false), nil, nil
	}
	return Resolve(t, true), &box, nil
}
