package dataset

import (
	"sort"

	"github.com/mwiater/trigbench/internal/scoring"
)

// AttackRecord is one line of attacks.jsonl: the text read from an original
// image and the distractor texts generated for it.
type AttackRecord struct {
	OriginalFilename string            `json:"original_filename"`
	CleanImagePath   string            `json:"clean_image_path,omitempty"`
	ImagePath        string            `json:"image_path"`
	DetectedText     string            `json:"detected_text"`
	Attacks          map[string]string `json:"attacks"`
}

// AttackText is one (attack type, text) pair.
type AttackText struct {
	Type scoring.AttackType
	Text string
}

// Ordered returns the record's attacks in reporting order, skipping clean
// and empty entries. Unrecognised attack names are appended last in name
// order.
func (a AttackRecord) Ordered() []AttackText {
	var out []AttackText
	used := make(map[string]bool, len(a.Attacks))
	for _, t := range scoring.AttackOrder {
		if t == scoring.AttackClean || t == scoring.AttackUnknown {
			continue
		}
		if text, ok := a.Attacks[string(t)]; ok {
			used[string(t)] = true
			if text != "" {
				out = append(out, AttackText{Type: t, Text: text})
			}
		}
	}
	var rest []string
	for name := range a.Attacks {
		if !used[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		kind := scoring.ParseAttackType(name)
		if text := a.Attacks[name]; text != "" && kind != scoring.AttackClean {
			out = append(out, AttackText{Type: kind, Text: text})
		}
	}
	return out
}

// LoadAttacks reads attacks.jsonl.
func LoadAttacks(path string) ([]AttackRecord, LoadStats, error) {
	return ReadJSONLFile[AttackRecord](path, nil)
}
