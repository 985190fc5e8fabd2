// Package log provides debug logging for droidpilot, enabled via the
// DROID_DEBUG environment variable and written to ~/.droidpilot/debug.log
// with rotation.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger      *zap.Logger
	enabled     bool
	initialized bool
	mu          sync.Mutex
)

// Init initializes the logger based on the DROID_DEBUG env var.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}
	initialized = true

	if os.Getenv("DROID_DEBUG") != "1" {
		logger = zap.NewNop()
		return nil
	}

	enabled = true

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(homeDir, ".droidpilot")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	writeSyncer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "debug.log"),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // Days
		Compress:   true,
	})

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "",
		NameKey:        "",
		CallerKey:      "",
		MessageKey:     "M",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		writeSyncer,
		zapcore.DebugLevel,
	)

	logger = zap.New(core, zap.AddCaller())
	logger.Info("Debug logging started")

	return nil
}

// IsEnabled returns whether debug logging is enabled.
func IsEnabled() bool {
	return enabled
}

// Logger returns the underlying zap logger.
func Logger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Sync flushes any buffered log entries.
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// LogCapture logs a perception step outcome.
func LogCapture(width, height int, duration time.Duration, err error) {
	if !enabled {
		return
	}
	if err != nil {
		logger.Info(fmt.Sprintf("[capture] failed after %s: %v", duration.Round(time.Millisecond), err))
		return
	}
	logger.Info(fmt.Sprintf("[capture] %dx%d in %s", width, height, duration.Round(time.Millisecond)))
}

// LogStep logs a completed run-loop step.
func LogStep(step int, action string, durationMs int64, success bool) {
	if !enabled {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	logger.Info(fmt.Sprintf("[step] #%d %s %dms %s", step, action, durationMs, status))
}

// LogGesture logs a dispatched gesture.
func LogGesture(kind string, x1, y1, x2, y2 int, duration time.Duration) {
	if !enabled {
		return
	}
	logger.Info(fmt.Sprintf("[gesture] %s (%d,%d)->(%d,%d) %s", kind, x1, y1, x2, y2, duration))
}
