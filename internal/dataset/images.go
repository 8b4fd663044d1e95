package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImageExtensions are the image types picked up from an image directory.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// ListImages returns the regular files in dir whose extension is in exts,
// sorted by name. Extension matching ignores case.
func ListImages(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading image directory: %w", err)
	}
	if len(exts) == 0 {
		exts = ImageExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if allowed[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
