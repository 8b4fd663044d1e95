package dataset

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/mwiater/trigbench/internal/geo"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/scoring"
)

// Column layout of the YFCC-style ground-truth table.
const (
	gtColumnID  = 1
	gtColumnLon = 10
	gtColumnLat = 11
	gtColumnURL = 14
	gtMinFields = 15
)

// DefaultPrefixSeparator splits a generated filename into its source prefix.
const DefaultPrefixSeparator = "_"

// GroundTruth maps photo ids and image filenames to their true location.
type GroundTruth struct {
	points    map[string]geo.Point
	separator string
}

// NewGroundTruth returns an empty table using the default prefix separator.
func NewGroundTruth() *GroundTruth {
	return &GroundTruth{points: make(map[string]geo.Point), separator: DefaultPrefixSeparator}
}

// SetPrefixSeparator changes the separator used by the prefix fallback. An
// empty separator disables that fallback.
func (g *GroundTruth) SetPrefixSeparator(sep string) {
	g.separator = sep
}

// Add registers p under key. Later additions overwrite earlier ones.
func (g *GroundTruth) Add(key string, p geo.Point) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	g.points[key] = p
}

// Len returns the number of keys, counting ids and filenames separately.
func (g *GroundTruth) Len() int {
	return len(g.points)
}

// Lookup returns the point stored under key.
func (g *GroundTruth) Lookup(key string) (geo.Point, bool) {
	p, ok := g.points[strings.TrimSpace(key)]
	return p, ok
}

// Resolve finds the ground truth for an evaluated image: by exact filename,
// then by the original source recorded in the benchmark metadata, then by
// the filename prefix before the separator. Prefix matches are
// low-confidence and flagged as such.
func (g *GroundTruth) Resolve(filename, originalSource string) (geo.Point, scoring.MatchKind, bool) {
	if p, ok := g.Lookup(filename); ok {
		return p, scoring.MatchFilename, true
	}
	if strings.TrimSpace(originalSource) != "" {
		if p, ok := g.Lookup(originalSource); ok {
			return p, scoring.MatchOriginalSource, true
		}
	}
	if g.separator != "" {
		prefix, _, found := strings.Cut(filename, g.separator)
		if found && prefix != "" {
			if p, ok := g.Lookup(prefix); ok {
				return p, scoring.MatchPrefix, true
			}
		}
	}
	return geo.Point{}, "", false
}

// LoadGroundTruth reads the tab-separated table at path.
func LoadGroundTruth(path string) (*GroundTruth, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("error opening ground truth: %w", err)
	}
	defer file.Close()
	return ReadGroundTruth(file)
}

// ReadGroundTruth parses rows of at least 15 tab-separated fields. Each row
// is indexed by its photo id and by the basename of its URL path. Short rows
// and rows with unusable coordinates are skipped.
func ReadGroundTruth(r io.Reader) (*GroundTruth, LoadStats, error) {
	gt := NewGroundTruth()
	var stats LoadStats
	log := logging.Logger()

	scanner := newScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Lines++
		parts := strings.Split(line, "\t")
		if len(parts) < gtMinFields {
			stats.Skipped++
			log.Debug().Int("line", stats.Lines).Int("fields", len(parts)).Msg("ground truth row too short")
			continue
		}
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[gtColumnLon]), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[gtColumnLat]), 64)
		p := geo.Point{Lat: lat, Lon: lon}
		if errLon != nil || errLat != nil || !p.Valid() {
			stats.Skipped++
			log.Debug().Int("line", stats.Lines).Msg("ground truth row has unusable coordinates")
			continue
		}
		gt.Add(urlBasename(parts[gtColumnURL]), p)
		gt.Add(parts[gtColumnID], p)
		stats.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return gt, stats, fmt.Errorf("error reading ground truth: %w", err)
	}
	return gt, stats, nil
}

func urlBasename(raw string) string {
	raw = strings.TrimSpace(raw)
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
