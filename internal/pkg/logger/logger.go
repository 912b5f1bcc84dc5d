package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Level          string // debug, info, warn, error
	Format         string // json, pretty
	FileEnabled    bool
	FilePath       string // logs directory path
	RotationSize   int    // MB
	RetentionDays  int
	ServiceName    string
	ServiceVersion string

	// Console output, default os.Stderr
	Out io.Writer
}

// Init initializes the global logger. The returned closer flushes and
// closes log files, it is a no-op when file output is disabled.
func Init(cfg Config) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	var writers []io.Writer
	var files closers

	switch cfg.Format {
	case "pretty", "console":
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		})
	case "json", "":
		writers = append(writers, out)
	default:
		return nil, fmt.Errorf("invalid log format %q: want json or pretty", cfg.Format)
	}

	if cfg.FileEnabled {
		if err := os.MkdirAll(cfg.FilePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		appLogFile := rotating(cfg.FilePath, "app.log", cfg.RotationSize, cfg.RetentionDays, 10)
		errorLogFile := rotating(cfg.FilePath, "error.log", cfg.RotationSize, cfg.RetentionDays, 10)
		files = append(files, appLogFile, errorLogFile)

		writers = append(writers,
			appLogFile,
			&minLevelWriter{w: errorLogFile, min: zerolog.ErrorLevel},
		)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("version", cfg.ServiceVersion).
		Logger()

	log.Logger = logger

	log.Debug().
		Str("level", cfg.Level).
		Str("format", cfg.Format).
		Bool("file_enabled", cfg.FileEnabled).
		Msg("Logger initialized")

	return files, nil
}

// NewAccessLogger creates a logger for HTTP access logs
func NewAccessLogger(logPath string, rotationSize int, retentionDays int) zerolog.Logger {
	if logPath == "" {
		return log.Logger
	}

	if err := os.MkdirAll(logPath, 0755); err != nil {
		log.Warn().Err(err).Msg("Failed to create access log directory, using default logger")
		return log.Logger
	}

	return zerolog.New(rotating(logPath, "access.log", rotationSize, retentionDays, 10)).With().
		Timestamp().
		Str("type", "access").
		Logger()
}

func rotating(dir, name string, sizeMB, days, backups int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    sizeMB, // MB
		MaxAge:     days,   // days
		MaxBackups: backups,
		Compress:   true,
	}
}

// minLevelWriter forwards only events at or above min
type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (m *minLevelWriter) Write(p []byte) (int, error) {
	return m.w.Write(p)
}

func (m *minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < m.min {
		return len(p), nil
	}
	return m.w.Write(p)
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, cl := range c {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
