// Package logger provides structured logging for the application.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // Enable pretty console output
	// FilePath, when set, is opened for append and every log line is also
	// written there as JSONL (the structured.log contract).
	FilePath string
}

// New creates a new structured logger. request.start/end/error lines use the
// field names and order documented by the JSONL log contract; zerolog emits
// object keys in call order, so callers should attach fields in that order.
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if cfg.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	} else {
		writers = append(writers, os.Stdout)
	}

	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		writers = append(writers, f)
	}

	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger(), nil
}

// SetGlobalLogger sets the package-level logger used by log.* calls.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
