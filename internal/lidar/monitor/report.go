package monitor

import (
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/banshee-data/canopy.tiles/internal/fsutil"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

// ReportDirName is the subdirectory of a unit's output directory that
// holds its diagnostics.
const ReportDirName = "report"

// Reporter writes the tile map and tile chart for each processed unit. It
// implements pipeline.ReportSink and is safe for concurrent use.
type Reporter struct {
	FS      fsutil.FileSystem
	Policy  semantics.Policy
	Plotter *TilePlotter
	Chart   *TileChart
}

// NewReporter returns a Reporter with default plot and chart settings.
func NewReporter(fsys fsutil.FileSystem, policy semantics.Policy) *Reporter {
	return &Reporter{
		FS:      fsys,
		Policy:  policy,
		Plotter: NewTilePlotter(),
		Chart:   &TileChart{},
	}
}

// ReportUnit writes {unit}_tiles.png and {unit}_tiles.html under the
// unit's report directory. Units without tiles get no report.
func (r *Reporter) ReportUnit(t l1records.Table, res *pipeline.Result) error {
	if res == nil || len(res.Tiles) == 0 {
		return nil
	}
	dir := filepath.Join(res.OutputDir, ReportDirName)
	if err := r.FS.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	pngPath := filepath.Join(dir, res.Unit.Name+"_tiles.png")
	if err := r.create(pngPath, func(w io.Writer) error {
		return r.Plotter.WritePNG(w, t, res)
	}); err != nil {
		return err
	}

	counts := CountTiles(t, res, r.Policy)
	htmlPath := filepath.Join(dir, res.Unit.Name+"_tiles.html")
	if err := r.create(htmlPath, func(w io.Writer) error {
		return r.Chart.WriteHTML(w, res.Unit.Name, counts)
	}); err != nil {
		return err
	}
	diagf("%s: report written to %s", res.Unit.Name, dir)
	return nil
}

// create streams render into a new file at path.
func (r *Reporter) create(path string, render func(io.Writer) error) (err error) {
	f, err := r.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	cw := &countingWriter{w: f}
	if err := render(cw); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tracef("wrote %s (%d bytes)", path, cw.n)
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
