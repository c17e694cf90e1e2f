package log

// Structured logging for the monitor
// File core receives every entry at or above the configured level
// Console core only shows operator-facing SUCCESS and ERROR lines
// A *Logger is built once in main and handed to each component

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxLogFileSize is the size after which app.log is truncated.
const MaxLogFileSize = 50 * 1024 * 1024

type Config struct {
	Dir     string
	Level   string
	Console bool
}

type Logger struct {
	file    *zap.Logger
	console *zap.Logger
	closer  io.Closer
}

// New builds a logger writing to <Dir>/app.log and, when Console is set, to stderr.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = lvl
	}

	dir := cfg.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	writer, err := openLogFile(filepath.Join(dir, "app.log"))
	if err != nil {
		return nil, err
	}

	fileConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		FunctionKey:    zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(fileConfig), writer, level)

	l := &Logger{
		file:    zap.New(fileCore),
		console: zap.NewNop(),
		closer:  writer,
	}

	if cfg.Console {
		consoleConfig := zapcore.EncoderConfig{
			TimeKey:     "time",
			LevelKey:    "level",
			MessageKey:  "msg",
			LineEnding:  zapcore.DefaultLineEnding,
			EncodeLevel: customLevelEncoder,
			EncodeTime:  zapcore.TimeEncoderOfLayout("15:04:05"),
		}
		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.Lock(os.Stderr),
			zapcore.InfoLevel,
		)
		l.console = zap.New(consoleCore)
	}

	return l, nil
}

// NewWithCores is used by tests that want to observe log output.
func NewWithCores(file, console zapcore.Core) *Logger {
	return &Logger{file: zap.New(file), console: zap.New(console)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{file: zap.NewNop(), console: zap.NewNop()}
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		file:    l.file.With(fields...),
		console: l.console,
		closer:  l.closer,
	}
}

func (l *Logger) Debug(message string, fields ...zap.Field) { l.file.Debug(message, fields...) }
func (l *Logger) Info(message string, fields ...zap.Field)  { l.file.Info(message, fields...) }
func (l *Logger) Warn(message string, fields ...zap.Field)  { l.file.Warn(message, fields...) }

// Success logs to file and shows a ✓ line on the console.
func (l *Logger) Success(message string, fields ...zap.Field) {
	l.file.Info(message, fields...)
	if ms := extractDuration(fields); ms > 0 {
		l.console.Info(fmt.Sprintf("✓ %s (%dms)", message, ms))
		return
	}
	l.console.Info("✓ " + message)
}

// Error logs to file and shows a ✗ line on the console, including the error text.
func (l *Logger) Error(message string, fields ...zap.Field) {
	l.file.Error(message, fields...)
	if errText := extractError(fields); errText != "" {
		l.console.Error(fmt.Sprintf("✗ %s: %s", message, errText))
		return
	}
	l.console.Error("✗ " + message)
}

// Request logs an outgoing HTTP request (file only).
func (l *Logger) Request(requestID, method, endpoint string, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
	}, fields...)
	l.file.Debug("HTTP request", all...)
}

// Response logs an HTTP response; non-2xx responses are also logged as errors.
func (l *Logger) Response(requestID string, statusCode int, durationMs int64, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	}, fields...)

	if statusCode >= 200 && statusCode < 300 {
		l.file.Debug("HTTP response", all...)
		return
	}
	l.file.Warn("HTTP response", all...)
}

func (l *Logger) Sync() error {
	_ = l.console.Sync()
	err := l.file.Sync()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// GenerateRequestID returns a short random id for correlating request/response lines.
func GenerateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(colorCyan + "DEBUG" + colorReset)
	case zapcore.InfoLevel:
		enc.AppendString(colorGreen + "SUCCESS" + colorReset) // console only sees Success at info
	case zapcore.WarnLevel:
		enc.AppendString(colorYellow + "WARN" + colorReset)
	case zapcore.ErrorLevel, zapcore.FatalLevel, zapcore.PanicLevel:
		enc.AppendString(colorRed + level.CapitalString() + colorReset)
	default:
		enc.AppendString(colorWhite + level.String() + colorReset)
	}
}

func extractDuration(fields []zap.Field) int64 {
	for _, field := range fields {
		if field.Key == "duration_ms" && field.Type == zapcore.Int64Type {
			return field.Integer
		}
	}
	return 0
}

func extractError(fields []zap.Field) string {
	for _, field := range fields {
		if field.Type != zapcore.ErrorType || field.Interface == nil {
			continue
		}
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	return ""
}

type rotatingLogWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
}

func (w *rotatingLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if info, err := w.file.Stat(); err == nil && info.Size() > MaxLogFileSize {
		w.file.Close()
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return 0, fmt.Errorf("failed to truncate log file: %w", err)
		}
		w.file = f
	}
	return w.file.Write(p)
}

func (w *rotatingLogWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

func (w *rotatingLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func openLogFile(path string) (*rotatingLogWriter, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if info, err := os.Stat(path); err == nil && info.Size() > MaxLogFileSize {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return &rotatingLogWriter{file: f, path: path}, nil
}
