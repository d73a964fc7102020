package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger defines the interface for logging throughout the application.
// Different implementations can be used for different contexts (console, silent, file).
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ConsoleLogger writes human-readable logs to stdout/stderr.
// Used by the CLI commands.
type ConsoleLogger struct {
	debug bool
}

func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{}
}

// NewDebugConsoleLogger returns a ConsoleLogger that also prints Debug messages.
func NewDebugConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{debug: true}
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	fmt.Printf("[INFO] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	if !c.debug {
		return
	}
	fmt.Printf("[DEBUG] "+msg+"\n", args...)
}

// SilentLogger discards all log messages.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}

// FileLogger writes timestamped lines to a file.
// Used while the TUI owns the terminal so log output can't corrupt the display.
type FileLogger struct {
	mu    sync.Mutex
	w     io.Writer
	close func() error
	debug bool
	now   func() time.Time
}

// NewFileLogger opens (or creates) path for appending.
func NewFileLogger(path string, debug bool) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := NewWriterLogger(f, debug)
	l.close = f.Close
	return l, nil
}

// NewWriterLogger writes to an arbitrary writer.
func NewWriterLogger(w io.Writer, debug bool) *FileLogger {
	return &FileLogger{w: w, debug: debug, now: time.Now}
}

func (f *FileLogger) Info(msg string, args ...interface{}) {
	f.write("INFO", msg, args...)
}

func (f *FileLogger) Error(msg string, args ...interface{}) {
	f.write("ERROR", msg, args...)
}

func (f *FileLogger) Debug(msg string, args ...interface{}) {
	if !f.debug {
		return
	}
	f.write("DEBUG", msg, args...)
}

// Close closes the underlying file, if any.
func (f *FileLogger) Close() error {
	if f.close == nil {
		return nil
	}
	return f.close()
}

func (f *FileLogger) write(level, msg string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.w, "%s [%s] "+msg+"\n", append([]interface{}{f.now().Format(time.RFC3339), level}, args...)...)
}

// OrSilent returns l, or a SilentLogger when l is nil.
func OrSilent(l Logger) Logger {
	if l == nil {
		return NewSilentLogger()
	}
	return l
}
