package dataset

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/mwiater/trigbench/internal/geo"
	"github.com/mwiater/trigbench/internal/scoring"
)

// ResultRecord is one line of evaluation output.
type ResultRecord struct {
	Filename       string   `json:"filename"`
	OriginalSource string   `json:"original_source"`
	AttackType     string   `json:"attack_type"`
	InjectedText   *string  `json:"injected_text"`
	PredictionText string   `json:"prediction_text"`
	PredLat        *float64 `json:"pred_lat"`
	PredLon        *float64 `json:"pred_lon"`
	GTLat          float64  `json:"gt_lat"`
	GTLon          float64  `json:"gt_lon"`
	ErrorKm        *float64 `json:"error_km"`
	WLAScore       float64  `json:"wla_score"`
	TBS            *float64 `json:"tbs"`
	GTMatch        string   `json:"gt_match,omitempty"`
	ParseFormat    string   `json:"parse_format,omitempty"`
	TrapHit        *bool    `json:"trap_hit"`
	Model          string   `json:"model,omitempty"`
}

// FromSample converts a scored sample into its output record.
func FromSample(s scoring.Sample, model string) ResultRecord {
	rec := ResultRecord{
		Filename:       s.Filename,
		OriginalSource: s.OriginalSource,
		AttackType:     string(s.AttackType),
		InjectedText:   s.InjectedText,
		PredictionText: s.PredictionText,
		GTLat:          s.GroundTruth.Lat,
		GTLon:          s.GroundTruth.Lon,
		ErrorKm:        s.ErrorKm,
		WLAScore:       s.Accuracy,
		TBS:            s.Bias,
		GTMatch:        string(s.Match),
		ParseFormat:    s.ParseFormat,
		TrapHit:        s.TrapHit,
		Model:          model,
	}
	if s.Predicted != nil {
		lat, lon := s.Predicted.Lat, s.Predicted.Lon
		rec.PredLat = &lat
		rec.PredLon = &lon
	}
	return rec
}

// Sample converts a record back into a scored sample. Attack types missing
// from older records are inferred from the filename.
func (r ResultRecord) Sample() scoring.Sample {
	s := scoring.Sample{
		Filename:       r.Filename,
		OriginalSource: r.OriginalSource,
		AttackType:     r.AttackKind(),
		InjectedText:   r.InjectedText,
		PredictionText: r.PredictionText,
		GroundTruth:    geo.Point{Lat: r.GTLat, Lon: r.GTLon},
		Match:          scoring.MatchKind(r.GTMatch),
		ErrorKm:        r.ErrorKm,
		Accuracy:       r.WLAScore,
		Bias:           r.TBS,
		TrapHit:        r.TrapHit,
		ParseFormat:    r.ParseFormat,
	}
	if r.PredLat != nil && r.PredLon != nil {
		s.Predicted = &geo.Point{Lat: *r.PredLat, Lon: *r.PredLon}
	}
	return s
}

// AttackKind returns the record's attack type, falling back to the filename
// naming convention when the field is empty or unknown.
func (r ResultRecord) AttackKind() scoring.AttackType {
	if t := scoring.ParseAttackType(r.AttackType); t != scoring.AttackUnknown {
		return t
	}
	return scoring.AttackTypeFromFilename(r.Filename)
}

// LoadResults reads an evaluation output file.
func LoadResults(path string) ([]ResultRecord, LoadStats, error) {
	return ReadJSONLFile[ResultRecord](path, nil)
}

// PartialPath is where pass-1 records for output are kept while a run is in
// progress.
func PartialPath(output string) string {
	return strings.TrimSuffix(output, ".jsonl") + ".partial.jsonl"
}

// LoadPartial reads pass-1 records from an interrupted run. A missing file
// is not an error.
func LoadPartial(output string) ([]ResultRecord, LoadStats, error) {
	records, stats, err := LoadResults(PartialPath(output))
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil, LoadStats{}, nil
	}
	return records, stats, err
}
