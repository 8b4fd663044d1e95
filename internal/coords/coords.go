// Package coords extracts latitude/longitude predictions from free-form
// model output.
//
// Three conventions are tried in a fixed order and the first one that yields
// a valid point wins: an embedded JSON object with latitude/longitude keys,
// a parenthesised "(lat, lon)" pair, and labelled "Latitude: x" /
// "Longitude: y" fields. Anything else is reported as no prediction.
package coords

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/mwiater/trigbench/internal/geo"
)

// Format identifies which convention produced a parsed point.
type Format string

const (
	FormatJSON    Format = "json"
	FormatPair    Format = "pair"
	FormatLabeled Format = "labeled"
	FormatNone    Format = "none"
)

var (
	pairPattern       = regexp.MustCompile(`\(\s*([-+]?\d+\.?\d*)\s*,\s*([-+]?\d+\.?\d*)\s*\)`)
	latitudePattern   = regexp.MustCompile(`(?i)Latitude[:\s]+([-+]?\d+\.?\d*)`)
	longitudePattern  = regexp.MustCompile(`(?i)Longitude[:\s]+([-+]?\d+\.?\d*)`)
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// Parse returns the predicted point in text, or nil when no convention
// matches.
func Parse(text string) *geo.Point {
	p, _ := ParseDetailed(text)
	return p
}

// ParseDetailed is Parse plus the convention that matched.
func ParseDetailed(text string) (*geo.Point, Format) {
	if strings.TrimSpace(text) == "" {
		return nil, FormatNone
	}
	cleaned := stripReasoning(text)
	if p, f := parseCandidates(cleaned); p != nil {
		return p, f
	}
	if cleaned != text {
		return parseCandidates(text)
	}
	return nil, FormatNone
}

func parseCandidates(text string) (*geo.Point, Format) {
	if p := fromJSON(text); p != nil {
		return p, FormatJSON
	}
	if p := fromPair(text); p != nil {
		return p, FormatPair
	}
	if p := fromLabels(text); p != nil {
		return p, FormatLabeled
	}
	return nil, FormatNone
}

// fromJSON decodes an object starting at each '{' in turn and returns the
// first one carrying a valid latitude/longitude pair. Trailing text after an
// object, including further braces, is ignored.
func fromJSON(text string) *geo.Point {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		var fields map[string]any
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&fields); err != nil {
			continue
		}
		if p := pointFromFields(fields); p != nil {
			return p
		}
	}
	return nil
}

func pointFromFields(fields map[string]any) *geo.Point {
	rawLat, okLat := fields["latitude"]
	rawLon, okLon := fields["longitude"]
	if !okLat || !okLon {
		return nil
	}
	lat, ok := toFloat(rawLat)
	if !ok {
		return nil
	}
	lon, ok := toFloat(rawLon)
	if !ok {
		return nil
	}
	return validPoint(lat, lon)
}

func fromPair(text string) *geo.Point {
	m := pairPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return parsePoint(m[1], m[2])
}

func fromLabels(text string) *geo.Point {
	lat := latitudePattern.FindStringSubmatch(text)
	lon := longitudePattern.FindStringSubmatch(text)
	if lat == nil || lon == nil {
		return nil
	}
	return parsePoint(lat[1], lon[1])
}

func parsePoint(latText, lonText string) *geo.Point {
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(lonText, 64)
	if err != nil {
		return nil
	}
	return validPoint(lat, lon)
}

func validPoint(lat, lon float64) *geo.Point {
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return nil
	}
	return &p
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// stripReasoning drops <think> blocks emitted by reasoning models. A dangling
// </think> keeps only what follows it; a dangling <think> drops the rest.
func stripReasoning(text string) string {
	out := thinkBlockPattern.ReplaceAllString(text, "")
	if i := strings.LastIndex(out, "</think>"); i >= 0 {
		out = out[i+len("</think>"):]
	}
	if i := strings.Index(out, "<think>"); i >= 0 {
		out = out[:i]
	}
	return out
}
