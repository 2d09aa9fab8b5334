// Package log provides structured logging with verbosity levels for modlayer.
// It wraps uber-go/zap and follows kubectl/klog patterns.
package log

import "go.uber.org/zap/zapcore"

// LevelTrace sits one step below zap's Debug.
const LevelTrace = zapcore.Level(-2)

// Verbosity levels accepted by -v.
const (
	VerbosityError = 0 // errors only
	VerbosityWarn  = 1 // + warnings
	VerbosityInfo  = 2 // + mounts, targets built, pass summaries
	VerbosityDebug = 3 // + resolution, per-source composition, queue ticks
	VerbosityTrace = 4 // + every scanned item and raw watcher event
)

// verbosityLevels is indexed by verbosity.
var verbosityLevels = [...]zapcore.Level{
	VerbosityError: zapcore.ErrorLevel,
	VerbosityWarn:  zapcore.WarnLevel,
	VerbosityInfo:  zapcore.InfoLevel,
	VerbosityDebug: zapcore.DebugLevel,
	VerbosityTrace: LevelTrace,
}

// VerbosityToLevel maps -v=N to a zap level, clamping out-of-range values.
func VerbosityToLevel(v int) zapcore.Level {
	if v < 0 {
		v = 0
	}
	if v >= len(verbosityLevels) {
		v = len(verbosityLevels) - 1
	}
	return verbosityLevels[v]
}

// LevelToVerbosity is the inverse of VerbosityToLevel for display.
func LevelToVerbosity(l zapcore.Level) int {
	for v, lvl := range verbosityLevels {
		if l >= lvl {
			return v
		}
	}
	return VerbosityTrace
}

// LevelName returns the upper-case name of l, including TRACE.
func LevelName(l zapcore.Level) string {
	if l == LevelTrace {
		return "TRACE"
	}
	return l.CapitalString()
}
