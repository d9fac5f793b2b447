package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tphakala/adcrec/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu                  sync.RWMutex
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	level               = new(slog.LevelVar)
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// replaceLevelNames renders the custom TRACE and FATAL levels by name.
func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		lvl, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		label, exists := levelNames[lvl]
		if !exists {
			label = lvl.String()
		}
		a.Value = slog.StringValue(label)
	}
	return a
}

// Init initializes the logging system with structured and human-readable loggers.
// JSON goes to stdout, text to stderr.
func Init() {
	SetOutput(os.Stdout, os.Stderr)
}

// SetLevel sets the minimum logging level for both loggers.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps a configured level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutput redirects both loggers, keeping the current level.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	}

	mu.Lock()
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, opts))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, opts))
	mu.Unlock()

	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Fatal logs at the custom Fatal level and exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// NewFileLogger creates a JSON logger writing to filePath through lumberjack,
// rotated according to logConf. The returned function closes the writer.
func NewFileLogger(filePath, serviceName string, logConf conf.LogConfig) (*slog.Logger, func() error, error) {
	logWriter, err := newRotatingWriter(filePath, logConf)
	if err != nil {
		return nil, nil, err
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})

	logger := slog.New(fileHandler).With("service", serviceName)
	return logger, logWriter.Close, nil
}

// newRotatingWriter configures lumberjack from the rotation settings.
// lumberjack does not create directories, so the log directory is created here.
func newRotatingWriter(filePath string, logConf conf.LogConfig) (*lumberjack.Logger, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	maxSizeMB := 100
	maxBackups := 3
	maxAge := 28 // days

	if configMaxSizeMB := int(logConf.MaxSize / (1024 * 1024)); configMaxSizeMB > 0 {
		maxSizeMB = configMaxSizeMB
	}

	switch logConf.Rotation {
	case conf.RotationDaily:
		maxAge = 1
		maxBackups = 30
	case conf.RotationWeekly:
		maxAge = 7
		maxBackups = 4
	case conf.RotationSize:
	default:
		slog.Warn("unknown log rotation type in config, using size-based defaults", "configured_type", logConf.Rotation)
	}

	return &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   false,
	}, nil
}

// Setup initializes logging from settings. When file logging is enabled the
// structured logger writes to both stdout and the rotated file.
func Setup(settings *conf.Settings) (func() error, error) {
	SetLevel(ParseLevel(settings.Main.Level))
	if settings.Debug {
		SetLevel(slog.LevelDebug)
	}

	if !settings.Main.Log.Enabled {
		Init()
		return func() error { return nil }, nil
	}

	writer, err := newRotatingWriter(settings.Main.Log.Path, settings.Main.Log)
	if err != nil {
		return nil, err
	}
	SetOutput(io.MultiWriter(os.Stdout, writer), os.Stderr)
	return writer.Close, nil
}
