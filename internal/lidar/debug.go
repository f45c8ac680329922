// Package lidar wires the logging of the tiling packages together. Each
// subpackage keeps its own ops, diag and trace streams; SetLogWriters
// configures all of them at once.
package lidar

import (
	"io"
	"log"
	"sync"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l3tiles"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l4export"
	"github.com/banshee-data/canopy.tiles/internal/lidar/layout"
	"github.com/banshee-data/canopy.tiles/internal/lidar/manifest"
	"github.com/banshee-data/canopy.tiles/internal/lidar/monitor"
	"github.com/banshee-data/canopy.tiles/internal/lidar/pipeline"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three streams of this package and of every
// tiling subpackage. Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	opsLogger = newLogger("[lidar] ", w.Ops)
	diagLogger = newLogger("[lidar] ", w.Diag)
	traceLogger = newLogger("[lidar] ", w.Trace)
	mu.Unlock()

	for _, set := range []func(ops, diag, trace io.Writer){
		l1records.SetLogWriters,
		l3tiles.SetLogWriters,
		l4export.SetLogWriters,
		pipeline.SetLogWriters,
		layout.SetLogWriters,
		manifest.SetLogWriters,
		monitor.SetLogWriters,
	} {
		set(w.Ops, w.Diag, w.Trace)
	}
}

// newLogger creates a *log.Logger for a given writer, or returns nil if w is nil.
func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (actionable warnings, errors, lifecycle events).
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (run configuration and summaries).
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
