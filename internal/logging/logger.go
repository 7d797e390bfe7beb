// Package logging provides structured logging with file and console
// output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with a date-named log file alongside console
// output.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	logPath string
}

// Config holds logger configuration.
type Config struct {
	LogDir  string // directory for log files (default: ~/.jarvis/logs)
	Level   string // minimum level: debug, info, warn, error
	Console bool   // also log to console
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogDir:  filepath.Join(home, ".jarvis", "logs"),
		Level:   "info",
		Console: true,
	}
}

// New creates a logger writing to a date-named file and, optionally,
// the console.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultConfig().LogDir
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(cfg.LogDir, fmt.Sprintf("jarvis_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	writers := []io.Writer{file}
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	zlog := zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Str("app", "jarvis").
		Logger()

	l := &Logger{zlog: zlog, file: file, logPath: logPath}
	l.zlog.Info().Str("logFile", logPath).Str("level", cfg.Level).Msg("logger initialized")
	return l, nil
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a zerolog.Logger with the component field set.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// LogPath returns the current log file path.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.zlog.Info().Msg("logger shutting down")
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
