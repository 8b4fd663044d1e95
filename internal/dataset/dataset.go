// Package dataset reads and writes the files exchanged between pipeline
// stages: the ground-truth TSV, JSON-lines metadata and result records, and
// the optional trap table. Malformed rows are skipped and counted, never
// fatal.
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mwiater/trigbench/internal/logging"
)

// maxLineBytes bounds a single TSV or JSONL line.
const maxLineBytes = 16 * 1024 * 1024

// LoadStats counts what a loader saw.
type LoadStats struct {
	Lines   int `json:"lines"`
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

func (s LoadStats) String() string {
	return fmt.Sprintf("%d lines, %d loaded, %d skipped", s.Lines, s.Loaded, s.Skipped)
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

// ReadJSONL decodes one T per non-blank line. validate, when set, runs on the
// raw line first; lines failing validation or decoding are skipped.
func ReadJSONL[T any](r io.Reader, validate func([]byte) error) ([]T, LoadStats, error) {
	var (
		out   []T
		stats LoadStats
	)
	log := logging.Logger()
	scanner := newScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Lines++
		if validate != nil {
			if err := validate([]byte(line)); err != nil {
				stats.Skipped++
				log.Debug().Int("line", stats.Lines).Err(err).Msg("skipping invalid record")
				continue
			}
		}
		var v T
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			stats.Skipped++
			log.Debug().Int("line", stats.Lines).Err(err).Msg("skipping undecodable record")
			continue
		}
		out = append(out, v)
		stats.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return out, stats, fmt.Errorf("error reading records: %w", err)
	}
	return out, stats, nil
}

// ReadJSONLFile is ReadJSONL over the file at path.
func ReadJSONLFile[T any](path string, validate func([]byte) error) ([]T, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer file.Close()
	return ReadJSONL[T](file, validate)
}

// Writer appends JSON lines to a file. Each record is written with a single
// Write call so an interrupted run leaves only complete lines. Writer is safe
// for concurrent use.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenWriter opens path for appending, creating parent directories. When
// truncate is set any existing content is discarded.
func OpenWriter(path string, truncate bool) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating output directory: %w", err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening output file: %w", err)
	}
	return &Writer{path: path, file: file}, nil
}

// Path returns the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Write appends v as one JSON line.
func (w *Writer) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return errors.New("writer is closed")
	}
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("error writing record: %w", err)
	}
	return nil
}

// Close closes the underlying file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// WriteJSONLAtomic writes records to path through a temporary file in the
// same directory and renames it into place.
func WriteJSONLAtomic[T any](path string, records []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	buf := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(buf)
	for i := range records {
		if err := encoder.Encode(records[i]); err != nil {
			cleanup()
			return fmt.Errorf("error encoding record %d: %w", i, err)
		}
	}
	if err := buf.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("error writing results: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("error syncing results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("error closing results: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("error replacing %s: %w", path, err)
	}
	return nil
}
