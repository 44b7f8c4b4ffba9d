// Package observability provides the process-wide loggers.
//
// CLILogger is initialized once at command startup; packages that need a
// logger receive one explicitly, commands use CLILogger directly.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by CLI commands. It defaults to a no-op
// logger so library consumers and tests stay quiet unless they opt in.
var CLILogger = zap.NewNop()

// Options controls CLI logger construction.
type Options struct {
	// Verbose enables debug-level output.
	Verbose bool

	// JSON switches from console encoding to JSON lines, for machine
	// consumption of stderr.
	JSON bool
}

// InitCLILogger builds and installs the CLI logger. Log output goes to
// stderr so stdout stays clean for command output (tables, JSON).
func InitCLILogger(opts Options) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	CLILogger = zap.New(core)
}

// Sync flushes buffered log entries. Called once on process exit.
func Sync() {
	_ = CLILogger.Sync()
}
