package monitor

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/pipeline"
)

// Tile legends are only drawn up to this many tiles.
const maxLegendTiles = 12

// TilePlotter draws the planar layout of a processed unit.
type TilePlotter struct {
	Width, Height vg.Length

	// MaxPoints bounds the points drawn across all tiles. Larger tiles are
	// thinned by a fixed stride.
	MaxPoints int
}

// NewTilePlotter returns a plotter with a square 8 inch canvas.
func NewTilePlotter() *TilePlotter {
	return &TilePlotter{Width: 8 * vg.Inch, Height: 8 * vg.Inch, MaxPoints: 50000}
}

// Plot builds the tile map for res. Points are taken from t by the record
// indices stored in each tile.
func (tp *TilePlotter) Plot(t l1records.Table, res *pipeline.Result) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s", res.Unit.Name, res.Grid)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	stride := 1
	if tp.MaxPoints > 0 && res.Selected > tp.MaxPoints {
		stride = (res.Selected + tp.MaxPoints - 1) / tp.MaxPoints
	}

	colors := generateColors(len(res.Tiles))
	for i, tile := range res.Tiles {
		pts := make(plotter.XYs, 0, len(tile.Points)/stride+1)
		for j := 0; j < len(tile.Points); j += stride {
			rec := t.Records[tile.Points[j]]
			pts = append(pts, plotter.XY{X: rec.X, Y: rec.Y})
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", tile.Seq, err)
		}
		s.GlyphStyle.Color = colors[i]
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		if len(res.Tiles) <= maxLegendTiles {
			p.Legend.Add(fmt.Sprintf("tile %d (%d,%d)", tile.Seq, tile.IX, tile.IY), s)
		}
	}

	if err := addGridLines(p, res); err != nil {
		return nil, err
	}
	if err := addCentroids(p, res); err != nil {
		return nil, err
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func addGridLines(p *plot.Plot, res *pipeline.Result) error {
	g := res.Grid
	edge := func(a, b plotter.XY) error {
		l, err := plotter.NewLine(plotter.XYs{a, b})
		if err != nil {
			return err
		}
		l.Color = color.Gray{Y: 96}
		l.Width = vg.Points(0.5)
		l.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		p.Add(l)
		return nil
	}
	for ix := 0; ix < g.NX; ix++ {
		x := g.CellBounds(ix, 0).XMin
		if err := edge(plotter.XY{X: x, Y: g.YMin}, plotter.XY{X: x, Y: g.YMax}); err != nil {
			return err
		}
	}
	for iy := 0; iy < g.NY; iy++ {
		y := g.CellBounds(0, iy).YMin
		if err := edge(plotter.XY{X: g.XMin, Y: y}, plotter.XY{X: g.XMax, Y: y}); err != nil {
			return err
		}
	}
	if err := edge(plotter.XY{X: g.XMax, Y: g.YMin}, plotter.XY{X: g.XMax, Y: g.YMax}); err != nil {
		return err
	}
	return edge(plotter.XY{X: g.XMin, Y: g.YMax}, plotter.XY{X: g.XMax, Y: g.YMax})
}

func addCentroids(p *plot.Plot, res *pipeline.Result) error {
	cents := res.Assignment.Centroids
	if len(cents) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(cents))
	for id := range cents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pts := make(plotter.XYs, len(ids))
	for i, id := range ids {
		pts[i] = plotter.XY{X: cents[id].X, Y: cents[id].Y}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("tree centroids: %w", err)
	}
	s.GlyphStyle.Color = color.Black
	s.GlyphStyle.Radius = vg.Points(3)
	s.GlyphStyle.Shape = draw.CrossGlyph{}
	p.Add(s)
	p.Legend.Add("tree centroid", s)
	return nil
}

// WritePNG renders the tile map as PNG to w.
func (tp *TilePlotter) WritePNG(w io.Writer, t l1records.Table, res *pipeline.Result) error {
	p, err := tp.Plot(t, res)
	if err != nil {
		return err
	}
	c := vgimg.New(tp.Width, tp.Height)
	p.Draw(draw.New(c))
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("encode tile map: %w", err)
	}
	return nil
}
