package l3tiles

import (
	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

// Tile is one non-empty cell of a partitioned table.
type Tile struct {
	// Seq numbers non-empty tiles contiguously from 0 in row-major
	// (ix outer, iy inner) order.
	Seq    int
	IX, IY int
	Index  int

	// Points are record indices into the source table, ascending.
	Points []int
}

// Select returns the indices of the records that belong to cell (ix, iy):
// ground records inside the cell, plus vegetation records whose instance
// was assigned to it.
func Select(t l1records.Table, g Grid, a Assignment, p semantics.Policy, ix, iy int) []int {
	idx := g.Index(ix, iy)
	var out []int
	for i, r := range t.Records {
		switch {
		case p.IsGround(r.ClassID) && g.Contains(ix, iy, r.X, r.Y):
			out = append(out, i)
		case p.IsVegetation(r.ClassID) && a.PerPoint[i] == idx:
			out = append(out, i)
		}
	}
	return out
}

// Partition selects every cell in one pass over t and returns the
// non-empty ones in row-major order. The result is identical to calling
// Select for each cell.
func Partition(t l1records.Table, g Grid, a Assignment, p semantics.Policy) []Tile {
	buckets := make([][]int, g.Cells())
	for i, r := range t.Records {
		cell := Unassigned
		switch {
		case p.IsGround(r.ClassID):
			if ix, iy, ok := g.Locate(r.X, r.Y); ok {
				cell = g.Index(ix, iy)
			}
		case p.IsVegetation(r.ClassID):
			cell = a.PerPoint[i]
		}
		if cell == Unassigned {
			continue
		}
		buckets[cell] = append(buckets[cell], i)
	}

	var tiles []Tile
	for idx, pts := range buckets {
		if len(pts) == 0 {
			continue
		}
		ix, iy := g.Coords(idx)
		tiles = append(tiles, Tile{Seq: len(tiles), IX: ix, IY: iy, Index: idx, Points: pts})
		tracef("tile %d (%d,%d): %d points", len(tiles)-1, ix, iy, len(pts))
	}
	return tiles
}
