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
)

const defaultLogFile = "/tmp/inkd.log"

// LevelTrace sits below slog.LevelDebug and is only emitted when tracing is
// enabled.
const LevelTrace = slog.Level(-8)

var (
	mu           sync.Mutex
	traceEnabled bool
	console      io.Writer = os.Stdout
	logPath      = defaultLogFile
	file         *os.File
	logger       = newLogger(os.Stdout)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: LevelTrace}))
}

// Configure opens the log file and routes every record to both the console
// and the file. Empty values fall back to the default path. When the file
// cannot be opened the sink degrades to the console only.
func Configure(path string) {
	mu.Lock()
	defer mu.Unlock()
	if strings.TrimSpace(path) == "" {
		path = defaultLogFile
	}
	closeFileLocked()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "unable to create log directory: %v\n", err)
		logger = newLogger(console)
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging to %s failed, continuing on stdout only: %v\n", path, err)
		logger = newLogger(console)
		return
	}
	logPath = path
	file = f
	logger = newLogger(io.MultiWriter(console, f))
}

// SetConsole replaces the console half of the sink. The device simulator
// uses this to keep records from tearing its terminal frame.
func SetConsole(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	console = w
	if file != nil {
		logger = newLogger(io.MultiWriter(console, file))
		return
	}
	logger = newLogger(console)
}

// Close flushes and closes the log file, leaving the console sink in place.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
	logger = newLogger(console)
}

func closeFileLocked() {
	if file == nil {
		return
	}
	_ = file.Sync()
	_ = file.Close()
	file = nil
}

// Path reports the log file currently in use.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Logger exposes the shared structured logger for collaborators that accept
// a *slog.Logger.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Error records err at error level. Nil errors are ignored.
func Error(err error, args ...any) {
	if err == nil {
		return
	}
	Logger().Error(err.Error(), args...)
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// SetTraceEnabled toggles emission of structured trace entries.
func SetTraceEnabled(enabled bool) {
	mu.Lock()
	traceEnabled = enabled
	mu.Unlock()
}

// Trace appends a structured entry to the shared log when tracing is enabled.
func Trace(event string, payload interface{}) {
	mu.Lock()
	enabled := traceEnabled
	l := logger
	mu.Unlock()
	if !enabled {
		return
	}
	if payload == nil {
		l.Log(context.Background(), LevelTrace, event)
		return
	}
	l.Log(context.Background(), LevelTrace, event, slog.Any("payload", payload))
}
