package l3tiles

import (
	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

// Unassigned marks a point whose tile is decided geometrically.
const Unassigned = -1

// Centroid is the planar mean of one vegetation instance's points.
type Centroid struct {
	X, Y  float64
	Count int
}

// Assignment is the per-instance tile mapping for one table.
type Assignment struct {
	// PerPoint holds, for every record, its instance's tile index, or
	// Unassigned for points outside the vegetation set.
	PerPoint []int

	// InstanceTile maps each vegetation instance id to a linear cell index.
	InstanceTile map[int64]int

	Centroids map[int64]Centroid
}

type accum struct {
	sumX, sumY float64
	count      int
}

// AssignInstances maps every vegetation instance in t to the grid cell that
// contains its centroid, then broadcasts that cell to the instance's
// points. The three passes run strictly in order: the centroids need the
// complete sums and the broadcast needs every instance mapped.
func AssignInstances(t l1records.Table, g Grid, veg semantics.LabelSet) Assignment {
	// Aggregate.
	sums := make(map[int64]*accum)
	for _, r := range t.Records {
		if !veg.Contains(r.ClassID) {
			continue
		}
		a := sums[r.InstanceID]
		if a == nil {
			a = &accum{}
			sums[r.InstanceID] = a
		}
		a.sumX += r.X
		a.sumY += r.Y
		a.count++
	}

	// Classify.
	a := Assignment{
		PerPoint:     make([]int, t.Len()),
		InstanceTile: make(map[int64]int, len(sums)),
		Centroids:    make(map[int64]Centroid, len(sums)),
	}
	for id, s := range sums {
		if s.count == 0 {
			continue
		}
		c := Centroid{X: s.sumX / float64(s.count), Y: s.sumY / float64(s.count), Count: s.count}
		ix, iy := g.CellOf(c.X, c.Y)
		a.InstanceTile[id] = g.Index(ix, iy)
		a.Centroids[id] = c
	}
	diagf("assigned %d vegetation instances over %s", len(a.InstanceTile), g)

	// Broadcast.
	for i, r := range t.Records {
		a.PerPoint[i] = Unassigned
		if !veg.Contains(r.ClassID) {
			continue
		}
		if idx, ok := a.InstanceTile[r.InstanceID]; ok {
			a.PerPoint[i] = idx
		}
	}
	return a
}
