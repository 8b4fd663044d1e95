package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/trigbench/internal/scoring"
)

// gtRow builds a 15-column ground-truth row.
func gtRow(id, lon, lat, url string) string {
	cols := make([]string, 15)
	for i := range cols {
		cols[i] = "x"
	}
	cols[1] = id
	cols[10] = lon
	cols[11] = lat
	cols[14] = url
	return strings.Join(cols, "\t")
}

func TestReadGroundTruth(t *testing.T) {
	input := strings.Join([]string{
		gtRow("1001", "2.3522", "48.8566", "http://farm1.example.com/12/paris01.jpg?size=large"),
		gtRow("1002", "139.6917", "35.6895", "http://farm1.example.com/12/tokyo02.jpg"),
		"too\tshort",
		gtRow("1003", "east", "12.0", "http://example.com/bad.jpg"),
		gtRow("1004", "10", "95", "http://example.com/offglobe.jpg"),
		"",
	}, "\n")

	gt, stats, err := ReadGroundTruth(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Lines: 5, Loaded: 2, Skipped: 3}, stats)
	assert.Equal(t, 4, gt.Len())

	p, ok := gt.Lookup("paris01.jpg")
	require.True(t, ok)
	assert.Equal(t, 48.8566, p.Lat)
	assert.Equal(t, 2.3522, p.Lon)

	_, ok = gt.Lookup("1002")
	assert.True(t, ok)
	_, ok = gt.Lookup("bad.jpg")
	assert.False(t, ok)
}

func TestResolveOrder(t *testing.T) {
	gt := NewGroundTruth()
	gt.Add("London.jpg", pt(51.5, -0.12))
	gt.Add("London", pt(1, 1))
	gt.Add("Rome.jpg", pt(41.9, 12.5))

	p, kind, ok := gt.Resolve("Rome.jpg", "London.jpg")
	require.True(t, ok)
	assert.Equal(t, scoring.MatchFilename, kind)
	assert.Equal(t, 41.9, p.Lat)

	p, kind, ok = gt.Resolve("London_similar_Londom.png", "London.jpg")
	require.True(t, ok)
	assert.Equal(t, scoring.MatchOriginalSource, kind)
	assert.Equal(t, 51.5, p.Lat)

	p, kind, ok = gt.Resolve("London_similar_Londom.png", "")
	require.True(t, ok)
	assert.Equal(t, scoring.MatchPrefix, kind)
	assert.Equal(t, 1.0, p.Lat)

	_, _, ok = gt.Resolve("Oslo_random_x.png", "Oslo.jpg")
	assert.False(t, ok)
}

func TestResolveCustomSeparator(t *testing.T) {
	gt := NewGroundTruth()
	gt.Add("London", pt(1, 1))

	gt.SetPrefixSeparator("-")
	_, _, ok := gt.Resolve("London_similar.png", "")
	assert.False(t, ok)
	_, kind, ok := gt.Resolve("London-similar.png", "")
	require.True(t, ok)
	assert.Equal(t, scoring.MatchPrefix, kind)

	gt.SetPrefixSeparator("")
	_, _, ok = gt.Resolve("London-similar.png", "")
	assert.False(t, ok)
}

func TestURLBasename(t *testing.T) {
	assert.Equal(t, "a.jpg", urlBasename("http://h/x/a.jpg?q=1"))
	assert.Equal(t, "b.jpg", urlBasename("b.jpg"))
	assert.Equal(t, "", urlBasename(""))
	assert.Equal(t, "", urlBasename("http://h/"))
}
