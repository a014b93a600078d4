// Package logging constructs the program's loggers.
//
// Every component logs through a stdlib *log.Logger carrying a bracketed
// component prefix ("[sync] ", "[daemon] ", ...). When a log file is
// configured, output is mirrored into it with size-based rotation.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Factory builds component loggers sharing one sink.
type Factory struct {
	sink   io.Writer
	closer io.Closer
}

// New creates a Factory writing to stderr. When logFile is non-empty, output
// is also appended to that file with rotation (10 MB per file, 3 backups).
func New(logFile string) *Factory {
	if logFile == "" {
		return &Factory{sink: os.Stderr}
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return &Factory{
		sink:   io.MultiWriter(os.Stderr, rotator),
		closer: rotator,
	}
}

// Component returns a logger prefixed with the component name, e.g.
// Component("sync") logs lines starting with "[sync] ".
func (f *Factory) Component(name string) *log.Logger {
	return log.New(f.sink, "["+name+"] ", log.LstdFlags)
}

// Close releases the rotating file, if any.
func (f *Factory) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
