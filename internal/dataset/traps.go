package dataset

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mwiater/trigbench/internal/geo"
)

// Traps maps a benchmark filename to the location its injected text points
// at.
type Traps map[string]geo.Point

// Get returns the trap for filename, or nil.
func (t Traps) Get(filename string) *geo.Point {
	p, ok := t[filename]
	if !ok {
		return nil
	}
	return &p
}

// LoadTraps reads a filename<TAB>lat<TAB>lon table. An empty path yields an
// empty table.
func LoadTraps(path string) (Traps, LoadStats, error) {
	if strings.TrimSpace(path) == "" {
		return Traps{}, LoadStats{}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("error opening traps: %w", err)
	}
	defer file.Close()
	return ReadTraps(file)
}

// ReadTraps parses a trap table. Blank lines and lines starting with # are
// ignored.
func ReadTraps(r io.Reader) (Traps, LoadStats, error) {
	traps := Traps{}
	var stats LoadStats
	scanner := newScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.Lines++
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			stats.Skipped++
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		p := geo.Point{Lat: lat, Lon: lon}
		name := strings.TrimSpace(parts[0])
		if errLat != nil || errLon != nil || !p.Valid() || name == "" {
			stats.Skipped++
			continue
		}
		traps[name] = p
		stats.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return traps, stats, fmt.Errorf("error reading traps: %w", err)
	}
	return traps, stats, nil
}
