// internal/util/util.go
package util

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid      = regexp.MustCompile(`[^a-z0-9_]+`)
	slugDashes       = regexp.MustCompile(`-+`)
	componentInvalid = regexp.MustCompile(`[\x00-\x1f/\\:*?"<>|\s]+`)
)

// WriteFile writes data to a file with 0o644 permissions, creating parent
// directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// TruncateRunes truncates a string to a maximum number of runes,
// appending an ellipsis if truncated.
func TruncateRunes(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}

// TruncateToWidth truncates each line of a string to a specified width in runes.
func TruncateToWidth(text string, width int) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if utf8.RuneCountInString(line) > width {
			lines[i] = TruncateRunes(line, width)
		}
	}
	return strings.Join(lines, "\n")
}

// Slugify lowercases s and reduces it to [a-z0-9_-], for model names in
// default output paths.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ":", "_")
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-_")
}

// FileComponent makes text safe as part of a file name while keeping its
// case and letters, so injected texts stay readable in generated names.
func FileComponent(text string) string {
	text = norm.NFKC.String(strings.TrimSpace(text))
	text = componentInvalid.ReplaceAllString(text, "-")
	text = slugDashes.ReplaceAllString(text, "-")
	text = strings.Trim(text, "-.")
	if text == "" {
		return "blank"
	}
	return TruncateRunes(text, 64)
}
