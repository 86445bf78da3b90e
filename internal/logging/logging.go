// Package logging constructs the zap logger shared by every core package.
// It trims the multi-core console/file setup of larger fbc-style tools down
// to what a single-process library server needs: one console core whose
// level is controlled by a verbosity flag.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console-only zap.Logger. debug=true enables debug-level
// output; otherwise the logger is limited to info and above.
func New(debug bool) *zap.Logger {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(ec),
		zapcore.Lock(zapcore.AddSync(os.Stdout)),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).Named("tinyopds")
}

// Nop returns a logger that discards everything; the demo CLI uses it when
// LogLevel is "none".
func Nop() *zap.Logger {
	return zap.NewNop()
}
