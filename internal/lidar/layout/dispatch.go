package layout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.tiles/internal/timeutil"
)

// UnitRecorder persists the outcome of each unit. Implementations must be
// safe for concurrent use when Workers > 1.
type UnitRecorder interface {
	RecordUnit(ctx context.Context, rep UnitReport) error
}

// ErrNotRun marks a unit that never started because the run stopped early,
// on cancellation or a recorder failure. Such units count as failed.
var ErrNotRun = errors.New("unit not run")

// UnitReport is the outcome of one unit.
type UnitReport struct {
	Unit    Unit
	Records int
	Result  *pipeline.Result
	Elapsed time.Duration

	// Err is nil on success, *l1records.EmptyInputError for a skipped
	// unit, *l1records.FormatError for malformed input, ErrNotRun, or a
	// write error.
	Err error
}

// Skipped reports whether the unit had no records.
func (r UnitReport) Skipped() bool {
	var ee *l1records.EmptyInputError
	return errors.As(r.Err, &ee)
}

// Failed reports whether the unit ended with an error other than empty
// input.
func (r UnitReport) Failed() bool {
	return r.Err != nil && !r.Skipped()
}

// Report collects every unit outcome of a run, in plan order.
type Report struct {
	Plan  *Plan
	Units []UnitReport
}

// Failed reports whether any unit failed. Malformed input in one unit does
// not stop the others, so callers check this after Run returns.
func (r *Report) Failed() bool {
	for _, u := range r.Units {
		if u.Failed() {
			return true
		}
	}
	return false
}

// Counts returns the number of processed, skipped and failed units.
func (r *Report) Counts() (ok, skipped, failed int) {
	for _, u := range r.Units {
		switch {
		case u.Skipped():
			skipped++
		case u.Failed():
			failed++
		default:
			ok++
		}
	}
	return ok, skipped, failed
}

// Dispatcher plans an input root and runs every unit through the
// pipeline.
type Dispatcher struct {
	Loader   *l1records.Loader
	Pipeline pipeline.Config

	// MergeAll merges every timestamp directory into one unit instead of
	// keeping only the latest.
	MergeAll bool

	// Workers bounds concurrent units. Values below 1 mean sequential.
	Workers int

	// Recorder, when non-nil, receives each unit's outcome. A recorder
	// error aborts the run.
	Recorder UnitRecorder

	// Clock times each unit. Nil uses the real clock.
	Clock timeutil.Clock
}

// Run detects the layout of root and processes every unit. The returned
// error is a *PathError for an unusable root, a recorder failure, or the
// context error; per-unit failures are reported in the Report instead.
func (d *Dispatcher) Run(ctx context.Context, root string) (*Report, error) {
	plan, err := Detect(d.Loader.FS, root, d.Loader.Pattern, d.MergeAll)
	if err != nil {
		return nil, err
	}

	report := &Report{Plan: plan, Units: make([]UnitReport, len(plan.Units))}
	for i, u := range plan.Units {
		report.Units[i] = UnitReport{Unit: u, Err: ErrNotRun}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, d.Workers))
	for i, u := range plan.Units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Units[i].Err = fmt.Errorf("%w: %w", ErrNotRun, err)
				return err
			}
			rep := d.processUnit(u)
			report.Units[i] = rep
			if d.Recorder != nil {
				if err := d.Recorder.RecordUnit(gctx, rep); err != nil {
					return fmt.Errorf("record unit %s: %w", u.Name, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (d *Dispatcher) processUnit(u Unit) (rep UnitReport) {
	clock := timeutil.OrReal(d.Clock)
	start := clock.Now()
	defer func() {
		rep.Elapsed = clock.Since(start)
		tracef("%s finished in %s", u.Name, rep.Elapsed)
	}()

	rep.Unit = u
	diagf("processing %s (%s) from %d director(ies)", u.Name, u.Layout, len(u.Sources))

	t, err := d.Loader.LoadDirs(u.Sources...)
	if err != nil {
		opsf("%s: %v", u.Name, err)
		rep.Err = err
		return rep
	}
	rep.Records = t.Len()

	res, err := pipeline.ProcessUnit(t, u.Unit, d.Pipeline)
	rep.Result = res
	rep.Err = err
	switch {
	case rep.Skipped():
		diagf("%s: %v", u.Name, err)
	case err != nil:
		opsf("%s: %v", u.Name, err)
	}
	return rep
}
