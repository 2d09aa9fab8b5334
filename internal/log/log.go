package log

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger    atomic.Pointer[zap.SugaredLogger]
	level     = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	verbosity atomic.Int32
	nop       = zap.NewNop().Sugar()
)

func init() {
	// Warnings only until Init is called
	verbosity.Store(VerbosityWarn)
	logger.Store(build(os.Stderr, "text"))
}

func build(w io.Writer, format string) *zap.SugaredLogger {
	core := NewCore(CoreOptions{
		Level:  level,
		Format: format,
		Output: w,
	})
	return zap.New(core).Sugar()
}

// Init initializes the global logger (call once at startup).
func Init(v int, format string) {
	InitTo(os.Stderr, v, format)
}

// InitTo initializes the global logger writing to w.
func InitTo(w io.Writer, v int, format string) {
	verbosity.Store(int32(v))
	level.SetLevel(VerbosityToLevel(v))
	logger.Store(build(w, format))
}

// SetVerbosity changes verbosity at runtime.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
	level.SetLevel(VerbosityToLevel(v))
}

// Verbosity returns the current verbosity level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Logger returns the current logger instance.
func Logger() *zap.SugaredLogger {
	return logger.Load()
}

// Sync flushes buffered entries.
func Sync() {
	_ = logger.Load().Sync()
}

// Error logs at error level (v=0).
func Error(msg string, keysAndValues ...any) {
	logger.Load().Errorw(msg, keysAndValues...)
}

// Warn logs at warn level (v=1).
func Warn(msg string, keysAndValues ...any) {
	logger.Load().Warnw(msg, keysAndValues...)
}

// Info logs at info level (v=2).
func Info(msg string, keysAndValues ...any) {
	logger.Load().Infow(msg, keysAndValues...)
}

// Debug logs at debug level (v=3).
func Debug(msg string, keysAndValues ...any) {
	logger.Load().Debugw(msg, keysAndValues...)
}

// Trace logs at trace level (v=4).
func Trace(msg string, keysAndValues ...any) {
	l := logger.Load().Desugar()
	if ce := l.Check(LevelTrace, msg); ce != nil {
		ce.Write(fields(keysAndValues)...)
	}
}

// fields converts loosely typed key/value pairs into zap fields.
// A dangling key is kept under "!BADKEY" like the sugared logger does.
func fields(kv []any) []zap.Field {
	out := make([]zap.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			out = append(out, zap.Any("!BADKEY", kv[i]))
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, zap.Any(key, kv[i+1]))
	}
	return out
}

// V returns a logger that only logs if verbosity >= level.
// Usage: log.V(3).Infow("detailed", "key", value)
func V(v int) *zap.SugaredLogger {
	if int(verbosity.Load()) >= v {
		return logger.Load()
	}
	return nop
}

// With returns a logger with additional context.
func With(keysAndValues ...any) *zap.SugaredLogger {
	return logger.Load().With(keysAndValues...)
}

// Component returns a logger tagged with component name.
func Component(name string) *zap.SugaredLogger {
	return logger.Load().With("component", name)
}
