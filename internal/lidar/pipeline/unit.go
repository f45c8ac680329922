package pipeline

import (
	"fmt"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l2stats"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l3tiles"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l4export"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
	"github.com/banshee-data/canopy.tiles/internal/security"
)

// Unit names one processing unit and the directories its records came from.
type Unit struct {
	Name    string
	Sources []string
}

// Config holds the dependencies shared by every unit of a run.
type Config struct {
	OutputRoot string
	TileSize   float64
	Policy     semantics.Policy
	Writer     *l4export.TileWriter

	// Report, when non-nil, is called after the unit's tiles are written.
	// Report failures are logged and do not fail the unit.
	Report ReportSink
}

// TileOutput pairs a selected tile with the file written for it.
type TileOutput struct {
	l3tiles.Tile
	File l4export.Written
}

// Result describes one processed unit.
type Result struct {
	Unit       Unit
	OutputDir  string
	Stats      l2stats.SceneStats
	Grid       l3tiles.Grid
	Assignment l3tiles.Assignment
	Tiles      []TileOutput

	// Selected counts points written across all tiles. Points whose class
	// is neither ground nor vegetation are never selected.
	Selected int
}

// ProcessUnit tiles and writes one unit's merged table. An empty table
// yields *l1records.EmptyInputError and writes nothing.
func ProcessUnit(t l1records.Table, u Unit, cfg Config) (*Result, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("unit %s: no tile writer configured", u.Name)
	}
	res := &Result{Unit: u}

	if t.Empty() {
		diagf("%s: no points found; skipping", u.Name)
		return res, &l1records.EmptyInputError{Dirs: u.Sources}
	}

	outDir, err := security.JoinWithin(cfg.OutputRoot, u.Name)
	if err != nil {
		return res, fmt.Errorf("unit %s: %w", u.Name, err)
	}
	res.OutputDir = outDir

	veg := cfg.Policy.VegetationSet()
	stats, err := l2stats.Compute(t, veg)
	if err != nil {
		return res, fmt.Errorf("unit %s: %w", u.Name, err)
	}
	res.Stats = stats
	diagf("%s: %s", u.Name, stats)
	if stats.Degenerate {
		opsf("%s: degenerate extent %.3g×%.3g m, densities use %.0e m²",
			u.Name, stats.Bounds.Width(), stats.Bounds.Height(), l2stats.MinArea)
	}

	grid, err := l3tiles.NewGrid(stats.Bounds, cfg.TileSize)
	if err != nil {
		return res, fmt.Errorf("unit %s: %w", u.Name, err)
	}
	res.Grid = grid
	diagf("%s: tiling into %s", u.Name, grid)

	res.Assignment = l3tiles.AssignInstances(t, grid, veg)
	tiles := l3tiles.Partition(t, grid, res.Assignment, cfg.Policy)

	for _, tile := range tiles {
		pts := l4export.Annotate(t, tile.Points, cfg.Policy)
		w, err := cfg.Writer.WriteTile(outDir, u.Name, tile.Seq, pts)
		if err != nil {
			return res, fmt.Errorf("unit %s: %w", u.Name, err)
		}
		res.Tiles = append(res.Tiles, TileOutput{Tile: tile, File: *w})
		res.Selected += len(tile.Points)
		tracef("%s: tile %d (%d,%d) → %s", u.Name, tile.Seq, tile.IX, tile.IY, w.Path)
	}
	diagf("%s: saved %d tiles under %s", u.Name, len(res.Tiles), outDir)

	if dropped := t.Len() - res.Selected; dropped > 0 {
		diagf("%s: %d points outside ground/vegetation classes were not written", u.Name, dropped)
	}

	if !isNilInterface(cfg.Report) {
		if err := cfg.Report.ReportUnit(t, res); err != nil {
			opsf("%s: report failed: %v", u.Name, err)
		}
	}
	return res, nil
}
