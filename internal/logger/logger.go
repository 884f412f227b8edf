package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents a logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelNone disables all logging
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name case-insensitively. Unknown names map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none", "off":
		return LevelNone
	default:
		return LevelInfo
	}
}

// sink is the destination shared by a logger and all loggers derived from it.
type sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

func (s *sink) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, line)
}

// Logger writes leveled, printf-style lines of the form
// "<timestamp> [LEVEL] [prefix] message key=value".
type Logger struct {
	level  *atomic.Int32
	out    *sink
	prefix string
	fields string
}

var global atomic.Pointer[Logger]

// Init opens the process-wide logger. Subsequent calls are no-ops.
func Init(level Level, logPath string) error {
	if global.Load() != nil {
		return nil
	}
	l, err := Open(level, logPath, "")
	if err != nil {
		return err
	}
	if !global.CompareAndSwap(nil, l) {
		_ = l.Close()
	}
	return nil
}

// Open creates a Logger appending to logPath. An empty path or LevelNone
// yields a logger that discards everything.
func Open(level Level, logPath string, prefix string) (*Logger, error) {
	if level == LevelNone || logPath == "" {
		return New(LevelNone, io.Discard, prefix), nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(level, file, prefix)
	l.out.closer = file
	return l, nil
}

// New creates a Logger writing to w.
func New(level Level, w io.Writer, prefix string) *Logger {
	lvl := &atomic.Int32{}
	lvl.Store(int32(level))
	return &Logger{
		level:  lvl,
		out:    &sink{w: w},
		prefix: prefix,
	}
}

// Global returns the process-wide logger, or a discarding one before Init.
func Global() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return discard
}

var discard = New(LevelNone, io.Discard, "")

// WithPrefix derives a logger whose prefix is extended with prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	child := *l
	if l.prefix != "" {
		child.prefix = l.prefix + ":" + prefix
	} else {
		child.prefix = prefix
	}
	return &child
}

// With derives a logger that appends the given key/value pairs to every line.
func (l *Logger) With(kv ...interface{}) *Logger {
	child := *l
	child.fields = joinFields(l.fields, kv)
	return &child
}

func joinFields(existing string, kv []interface{}) string {
	if len(kv) == 0 {
		return existing
	}
	pairs := make([]string, 0, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		value := "MISSING"
		if i+1 < len(kv) {
			value = fmt.Sprint(kv[i+1])
		}
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)
	if existing == "" {
		return strings.Join(pairs, " ")
	}
	return existing + " " + strings.Join(pairs, " ")
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level Level) bool {
	current := l.GetLevel()
	return current != LevelNone && level >= current
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] ")
	if l.prefix != "" {
		b.WriteString("[" + l.prefix + "] ")
	}
	fmt.Fprintf(&b, format, args...)
	if l.fields != "" {
		b.WriteByte(' ')
		b.WriteString(l.fields)
	}
	b.WriteByte('\n')
	l.out.write(b.String())
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.out.closer == nil {
		return nil
	}
	err := l.out.closer.Close()
	l.out.closer = nil
	l.out.w = io.Discard
	return err
}

// Debug logs using the global logger
func Debug(format string, args ...interface{}) {
	Global().Debug(format, args...)
}

// Info logs using the global logger
func Info(format string, args ...interface{}) {
	Global().Info(format, args...)
}

// Warn logs using the global logger
func Warn(format string, args ...interface{}) {
	Global().Warn(format, args...)
}

// Error logs using the global logger
func Error(format string, args ...interface{}) {
	Global().Error(format, args...)
}
