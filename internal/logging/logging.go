// Package logging owns the process-wide logger. Console output is human
// readable; the optional log file receives one JSON object per event.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	logFile *os.File
	logger  = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)
	level   = zerolog.InfoLevel
	console = true
)

// Init routes logging to stdout and, when logPath is set, to a JSON log file.
// Calling Init again closes the previous file.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log directory: %w", err)
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = file
	}
	rebuild()
	return nil
}

// rebuild recreates the logger from the current outputs. Callers hold mu.
func rebuild() {
	var writers []io.Writer
	if console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	if logFile != nil {
		writers = append(writers, logFile)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}
	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().Level(level)
	log.SetFlags(0)
	log.SetOutput(logger)
}

// SetConsole turns console output on or off; the log file is unaffected.
// The progress view turns the console off while it owns the terminal.
func SetConsole(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	console = enabled
	rebuild()
}

// SetDebug toggles debug-level output.
func SetDebug(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	level = zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger = logger.Level(level)
}

// Logger returns the current logger.
func Logger() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Close flushes and closes the log file, if any. Console logging continues
// with the current console setting.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	file := logFile
	logFile = nil
	rebuild()
	return file.Close()
}

// LogEvent logs a formatted message at info level.
func LogEvent(format string, args ...any) {
	l := Logger()
	l.Info().Msgf(format, args...)
}

// LogRequest records one request or response exchanged with a model backend
// at debug level.
func LogRequest(direction, endpoint, model, operation string, payload any) {
	l := Logger()
	l.Debug().
		Str("direction", strings.ToUpper(strings.TrimSpace(direction))).
		Str("operation", strings.TrimSpace(operation)).
		Msg(buildRequestMessage(direction, endpoint, model, operation, payload))
}

func buildRequestMessage(direction, endpoint, model, operation string, payload any) string {
	dir := strings.TrimSpace(direction)
	if dir != "" {
		dir = strings.ToUpper(dir)
	}
	endpointValue := strings.TrimSpace(endpoint)
	if endpointValue == "" {
		endpointValue = "unknown"
	}
	modelValue := strings.TrimSpace(model)
	if modelValue == "" {
		modelValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("endpoint=%s", endpointValue))
	parts = append(parts, fmt.Sprintf("model=%s", modelValue))
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", operation))
	}
	parts = append(parts, fmt.Sprintf("payload=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

// formatPayload renders payloads for the log. Long strings such as base64
// image data are truncated.
func formatPayload(payload any) string {
	const max = 512
	var out string
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		out = v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		out = string(v)
	case fmt.Stringer:
		out = v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		out = string(data)
	}
	if len(out) > max {
		return fmt.Sprintf("%s...(%d bytes)", out[:max], len(out))
	}
	return out
}
