package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different logging levels
type LogLevel int32

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings and errors
	LevelInfo
	// LevelDebug logs detailed debug information and all above
	LevelDebug
	// LevelTrace logs very detailed trace information and all above
	LevelTrace
)

var levelNames = map[LogLevel]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// ParseLevel converts a level name (case-insensitive) to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	for level, name := range levelNames {
		if strings.EqualFold(s, name) {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// zapLevel maps our levels onto zap's. Trace has no zap equivalent and
// is emitted at debug once our own gate lets it through.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Options controls how the default logger is built.
type Options struct {
	Level  LogLevel
	Format string // console or json
	Output string // stdout, stderr or a file path
}

// sink is shared by a logger and every logger derived from it, so
// Configure and SetLevel reach package-level loggers created at init.
type sink struct {
	level atomic.Int32
	zap   zap.AtomicLevel

	mu    sync.RWMutex
	sugar *zap.SugaredLogger
}

func (s *sink) setLevel(level LogLevel) {
	s.level.Store(int32(level))
	s.zap.SetLevel(level.zapLevel())
}

func (s *sink) logger() *zap.SugaredLogger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sugar
}

// Logger provides structured logging capabilities
type Logger struct {
	sink   *sink
	prefix string
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		level := LevelInfo
		if name := os.Getenv("LOG_LEVEL"); name != "" {
			if parsed, err := ParseLevel(name); err == nil {
				level = parsed
			}
		}

		// Enable debug logging if FUSE_DEBUG is set
		if os.Getenv("FUSE_DEBUG") != "" {
			level = LevelDebug
		}

		logger, err := NewLogger("DEVFS", Options{Level: level, Format: "console", Output: "stdout"})
		if err != nil {
			logger = newFallback("DEVFS", level)
		}
		defaultLogger = logger
	})
	return defaultLogger
}

// Configure rebuilds the output of the default logger and every logger
// derived from it.
func Configure(opts Options) error {
	base := GetLogger()
	sugar, err := build(opts, base.sink.zap)
	if err != nil {
		return err
	}
	base.sink.setLevel(opts.Level)

	base.sink.mu.Lock()
	old := base.sink.sugar
	base.sink.sugar = sugar
	base.sink.mu.Unlock()

	_ = old.Sync()
	return nil
}

// NewLogger creates a new logger with the given prefix
func NewLogger(prefix string, opts Options) (*Logger, error) {
	s := &sink{zap: zap.NewAtomicLevel()}
	s.setLevel(opts.Level)

	sugar, err := build(opts, s.zap)
	if err != nil {
		return nil, err
	}
	s.sugar = sugar

	return &Logger{sink: s, prefix: prefix}, nil
}

func build(opts Options, level zap.AtomicLevel) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if opts.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.Level = level
	cfg.DisableStacktrace = true
	if opts.Output != "" {
		cfg.OutputPaths = []string{opts.Output}
	}

	z, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return z.Sugar(), nil
}

func newFallback(prefix string, level LogLevel) *Logger {
	s := &sink{zap: zap.NewAtomicLevel()}
	s.setLevel(level)
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		s.zap,
	)
	s.sugar = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
	return &Logger{sink: s, prefix: prefix}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.setLevel(level)
}

// Level reports the current logging level.
func (l *Logger) Level() LogLevel {
	return LogLevel(l.sink.level.Load())
}

// shouldLog determines if a message at the given level should be logged
func (l *Logger) shouldLog(level LogLevel) bool {
	return int32(level) <= l.sink.level.Load()
}

// log performs the actual logging
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	sugar := l.sink.logger().Named(l.prefix)
	switch level {
	case LevelError:
		sugar.Errorf(format, args...)
	case LevelWarn:
		sugar.Warnf(format, args...)
	case LevelInfo:
		sugar.Infof(format, args...)
	default:
		sugar.Debugf(format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LevelTrace, format, args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sink.logger().Sync()
}

// WithPrefix creates a new logger with a different prefix. The derived
// logger shares level and output with its parent.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		sink:   l.sink,
		prefix: prefix,
	}
}
