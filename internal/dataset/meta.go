package dataset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// InjectionGenerativeEdit names text injection through an image-editing
// diffusion workflow.
const InjectionGenerativeEdit = "generative_edit"

// MetaRecord describes one generated (or clean) benchmark image.
type MetaRecord struct {
	Filename           string   `json:"filename"`
	OriginalSource     string   `json:"original_source,omitempty"`
	CleanSource        string   `json:"clean_source,omitempty"`
	AttackType         string   `json:"attack_type,omitempty"`
	InjectedText       *string  `json:"injected_text,omitempty"`
	SemanticDifficulty string   `json:"semantic_difficulty,omitempty"`
	RelevanceScore     *float64 `json:"relevance_score,omitempty"`
	PhysicalLevel      string   `json:"physical_level,omitempty"`
	InjectionStrategy  string   `json:"injection_strategy,omitempty"`
	AchievedStrategy   string   `json:"achieved_strategy,omitempty"`
	Degraded           bool     `json:"degraded,omitempty"`
	PromptUsed         string   `json:"prompt_used,omitempty"`
	Seed               *int64   `json:"seed,omitempty"`
	TaskID             string   `json:"task_id,omitempty"`
}

const metaSchema = `{
  "type": "object",
  "required": ["filename"],
  "properties": {
    "filename": {"type": "string", "minLength": 1},
    "original_source": {"type": ["string", "null"]},
    "clean_source": {"type": ["string", "null"]},
    "attack_type": {"type": ["string", "null"]},
    "injected_text": {"type": ["string", "null"]},
    "semantic_difficulty": {"type": ["string", "null"]},
    "relevance_score": {"type": ["number", "null"]},
    "physical_level": {"type": ["string", "null"]},
    "injection_strategy": {"type": ["string", "null"]},
    "achieved_strategy": {"type": ["string", "null"]},
    "degraded": {"type": ["boolean", "null"]},
    "prompt_used": {"type": ["string", "null"]},
    "seed": {"type": ["integer", "null"]},
    "task_id": {"type": ["string", "null"]}
  }
}`

var (
	metaSchemaOnce sync.Once
	metaSchemaVal  *gojsonschema.Schema
	metaSchemaErr  error
)

func compiledMetaSchema() (*gojsonschema.Schema, error) {
	metaSchemaOnce.Do(func() {
		metaSchemaVal, metaSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(metaSchema))
	})
	return metaSchemaVal, metaSchemaErr
}

// ValidateMetaLine checks one raw metadata line against the record schema.
func ValidateMetaLine(line []byte) error {
	schema, err := compiledMetaSchema()
	if err != nil {
		return fmt.Errorf("metadata schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(line))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("record failed validation: %s", strings.Join(details, "; "))
}

// Meta indexes metadata records by filename. A later record for the same
// filename replaces the earlier one.
type Meta map[string]MetaRecord

// Get returns the record for filename, if any.
func (m Meta) Get(filename string) (MetaRecord, bool) {
	rec, ok := m[filename]
	return rec, ok
}

// LoadMeta reads a benchmark metadata file. An empty path yields an empty
// index, since metadata is optional for evaluation.
func LoadMeta(path string) (Meta, LoadStats, error) {
	meta := make(Meta)
	if strings.TrimSpace(path) == "" {
		return meta, LoadStats{}, nil
	}
	records, stats, err := ReadJSONLFile[MetaRecord](path, ValidateMetaLine)
	if err != nil {
		return meta, stats, err
	}
	for _, rec := range records {
		meta[rec.Filename] = rec
	}
	return meta, stats, nil
}
