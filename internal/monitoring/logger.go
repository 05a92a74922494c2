// Package monitoring carries the process-wide diagnostics of the track
// finder: a replaceable printf-style logger, the verbosity levels of the
// per-layer log streams and the Prometheus metrics the pipeline reports
// into.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Level selects which of the ops, diag and trace streams of the layer
// packages are written.
type Level int

const (
	// LevelOps writes actionable warnings only.
	LevelOps Level = iota
	// LevelDiag adds per-track and per-window summaries.
	LevelDiag
	// LevelTrace adds per-slice detail.
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelOps:
		return "ops"
	case LevelDiag:
		return "diag"
	case LevelTrace:
		return "trace"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel accepts ops, diag or trace, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ops", "":
		return LevelOps, nil
	case "diag", "debug":
		return LevelDiag, nil
	case "trace":
		return LevelTrace, nil
	}
	return LevelOps, fmt.Errorf("invalid log level %q (want ops, diag or trace)", s)
}

// Writers returns the writers to pass to a layer's SetLogWriters for
// level. Disabled streams are nil.
func Writers(w io.Writer, level Level) (ops, diag, trace io.Writer) {
	ops = w
	if level >= LevelDiag {
		diag = w
	}
	if level >= LevelTrace {
		trace = w
	}
	return ops, diag, trace
}
