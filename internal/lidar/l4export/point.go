package l4export

import (
	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

// Point is one annotated output point. All fields are stored as float32.
type Point struct {
	X, Y, Z     float32
	Intensity   float32
	SemanticSeg float32
	TreeID      float32
}

// FieldNames lists the output fields in file order.
var FieldNames = []string{"x", "y", "z", "intensity", "semantic_seg", "treeID"}

// Annotate converts the records at indices into output points, deriving
// semantic_seg and treeID from the policy.
func Annotate(t l1records.Table, indices []int, p semantics.Policy) []Point {
	out := make([]Point, len(indices))
	for i, idx := range indices {
		r := t.Records[idx]
		seg, tree := p.Annotate(r.ClassID, r.InstanceID)
		out[i] = Point{
			X:           float32(r.X),
			Y:           float32(r.Y),
			Z:           float32(r.Z),
			Intensity:   float32(r.Intensity),
			SemanticSeg: seg,
			TreeID:      tree,
		}
	}
	return out
}
