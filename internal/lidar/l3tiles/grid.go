package l3tiles

import (
	"fmt"
	"math"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l2stats"
)

// minExtent keeps a zero-width extent from producing a zero-cell axis.
const minExtent = 1e-9

// MaxCells bounds nx*ny so a tiny tile size cannot exhaust memory.
const MaxCells = 1 << 22

// Grid is a uniform nx × ny partition of a unit's planar bounds. Cell
// (ix, iy) has linear index ix*NY+iy. Every cell edge is at least TileSize
// long unless the whole extent is shorter, because the last row and column
// absorb the remainder.
type Grid struct {
	XMin, YMin float64
	XMax, YMax float64
	TileSize   float64
	NX, NY     int
}

// NewGrid sizes a grid over b with cells of at least tileSize.
func NewGrid(b l2stats.Bounds, tileSize float64) (Grid, error) {
	if math.IsNaN(tileSize) || math.IsInf(tileSize, 0) || tileSize <= 0 {
		return Grid{}, fmt.Errorf("tile size must be a positive finite number, got %v", tileSize)
	}

	nx := cellsAlong(b.Width(), tileSize)
	ny := cellsAlong(b.Height(), tileSize)
	if nx*ny > MaxCells || nx*ny <= 0 {
		return Grid{}, fmt.Errorf("tile size %g m over %.1f×%.1f m would need more than %d cells",
			tileSize, b.Width(), b.Height(), MaxCells)
	}

	return Grid{
		XMin: b.XMin, YMin: b.YMin,
		XMax: b.XMax, YMax: b.YMax,
		TileSize: tileSize,
		NX:       nx, NY: ny,
	}, nil
}

func cellsAlong(extent, tileSize float64) int {
	n := math.Floor(max(extent, minExtent) / tileSize)
	if n > MaxCells {
		return MaxCells + 1
	}
	return max(1, int(n))
}

// Cells returns nx*ny.
func (g Grid) Cells() int { return g.NX * g.NY }

// Index returns the linear index of cell (ix, iy).
func (g Grid) Index(ix, iy int) int { return ix*g.NY + iy }

// Coords is the inverse of Index.
func (g Grid) Coords(idx int) (ix, iy int) { return idx / g.NY, idx % g.NY }

// CellOf maps a position to the cell whose index range covers it, clamping
// positions outside the grid onto the nearest edge cell. It is the mapping
// used for instance centroids.
func (g Grid) CellOf(x, y float64) (ix, iy int) {
	ix = clamp(int(math.Floor((x-g.XMin)/g.TileSize)), 0, g.NX-1)
	iy = clamp(int(math.Floor((y-g.YMin)/g.TileSize)), 0, g.NY-1)
	return ix, iy
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func (g Grid) xEdges(ix int) (x0, x1 float64) {
	x0 = g.XMin + float64(ix)*g.TileSize
	if ix == g.NX-1 {
		return x0, g.XMax
	}
	return x0, g.XMin + float64(ix+1)*g.TileSize
}

func (g Grid) yEdges(iy int) (y0, y1 float64) {
	y0 = g.YMin + float64(iy)*g.TileSize
	if iy == g.NY-1 {
		return y0, g.YMax
	}
	return y0, g.YMin + float64(iy+1)*g.TileSize
}

// CellBounds returns the geometric extent of cell (ix, iy). The last
// column ends at XMax and the last row at YMax.
func (g Grid) CellBounds(ix, iy int) l2stats.Bounds {
	x0, x1 := g.xEdges(ix)
	y0, y1 := g.yEdges(iy)
	return l2stats.Bounds{XMin: x0, YMin: y0, XMax: x1, YMax: y1}
}

// Contains reports whether (x, y) lies in cell (ix, iy): half-open
// [x0,x1)×[y0,y1), closed on the upper side for the last column and row.
func (g Grid) Contains(ix, iy int, x, y float64) bool {
	x0, x1 := g.xEdges(ix)
	y0, y1 := g.yEdges(iy)
	if x < x0 || y < y0 {
		return false
	}
	inX := x < x1 || (ix == g.NX-1 && x <= x1)
	inY := y < y1 || (iy == g.NY-1 && y <= y1)
	return inX && inY
}

// Locate returns the cell that geometrically contains (x, y), or ok=false
// when the position is outside the grid. It agrees with Contains exactly,
// including at cell edges where floor division can round the other way.
func (g Grid) Locate(x, y float64) (ix, iy int, ok bool) {
	ix, iy = g.CellOf(x, y)
	if x0, _ := g.xEdges(ix); x < x0 && ix > 0 {
		ix--
	} else if _, x1 := g.xEdges(ix); x >= x1 && ix < g.NX-1 {
		ix++
	}
	if y0, _ := g.yEdges(iy); y < y0 && iy > 0 {
		iy--
	} else if _, y1 := g.yEdges(iy); y >= y1 && iy < g.NY-1 {
		iy++
	}
	if !g.Contains(ix, iy, x, y) {
		return 0, 0, false
	}
	return ix, iy, true
}

func (g Grid) String() string {
	return fmt.Sprintf("%d×%d cells (~%g m each)", g.NX, g.NY, g.TileSize)
}
