// Package logging builds the arbor loggers shared by every component.
package logging

import (
	"os"
	"path/filepath"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"

	"github.com/seenimoa/investa/internal/config"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// New creates a logger writing to stderr, plus a file when cfg.File is set.
// Reports go to stdout, so console logging never mixes with them.
func New(cfg config.LoggingConfig) arbor.ILogger {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	format := OutputFormat(cfg.Format)

	l := arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		Writer:     os.Stderr,
		TimeFormat: timeFormat,
		OutputType: format,
	})

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err == nil {
			l = l.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   cfg.File,
				TimeFormat: timeFormat,
				MaxSize:    10 * 1024 * 1024,
				MaxBackups: 3,
				OutputType: format,
			})
		}
	}

	return l.WithLevelFromString(level)
}

// OutputFormat maps the configured format onto arbor's writer format.
// Anything other than "json" is logfmt text.
func OutputFormat(format string) models.OutputFormat {
	if format == "json" {
		return models.OutputFormatJSON
	}
	return models.OutputFormatLogfmt
}

// discardWriter implements writers.IWriter and drops all output.
type discardWriter struct{}

func (w *discardWriter) Write(p []byte) (int, error)           { return len(p), nil }
func (w *discardWriter) WithLevel(_ log.Level) writers.IWriter { return w }
func (w *discardWriter) GetFilePath() string                   { return "" }
func (w *discardWriter) Close() error                          { return nil }

// NewSilent returns a logger that discards everything. Used by tests.
func NewSilent() arbor.ILogger {
	return arbor.NewLogger().WithWriters([]writers.IWriter{&discardWriter{}})
}

// OrSilent returns l, or a silent logger when l is nil.
func OrSilent(l arbor.ILogger) arbor.ILogger {
	if l == nil {
		return NewSilent()
	}
	return l
}
