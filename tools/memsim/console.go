//go:build !386

package main

import (
	"bytes"

	"go.uber.org/zap"
)

// consoleWriter forwards kernel console output to a zap logger one line at a
// time. Partial lines are buffered until their newline arrives.
type consoleWriter struct {
	log  *zap.Logger
	line []byte
}

func newConsoleWriter(log *zap.Logger) *consoleWriter {
	return &consoleWriter{log: log}
}

// Write implements io.Writer.
func (w *consoleWriter) Write(p []byte) (int, error) {
	w.line = append(w.line, p...)
	for {
		eol := bytes.IndexByte(w.line, '\n')
		if eol < 0 {
			break
		}

		if eol > 0 {
			w.log.Info(string(w.line[:eol]))
		}
		w.line = w.line[eol+1:]
	}

	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *consoleWriter) Flush() {
	if len(w.line) != 0 {
		w.log.Info(string(w.line))
		w.line = w.line[:0]
	}
}

// newLogger builds the simulator logger for the given level name.
func newLogger(level string) (*zap.Logger, error) {
	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.DisableStacktrace = true
	return cfg.Build()
}
