package l2stats

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

// MinArea is the floor applied to the planar area before dividing by it.
const MinArea = 1e-9

const squareMetresPerHectare = 10000.0

// ErrEmptyTable is returned when statistics are requested for a table with
// no rows.
var ErrEmptyTable = errors.New("l2stats: empty table")

// Bounds is an axis-aligned planar bounding box.
type Bounds struct {
	XMin, YMin float64
	XMax, YMax float64
}

// Width returns XMax-XMin.
func (b Bounds) Width() float64 { return b.XMax - b.XMin }

// Height returns YMax-YMin.
func (b Bounds) Height() float64 { return b.YMax - b.YMin }

// BoundsOf returns the planar bounds of t. The table must not be empty.
func BoundsOf(t l1records.Table) Bounds {
	b := Bounds{
		XMin: t.Records[0].X, XMax: t.Records[0].X,
		YMin: t.Records[0].Y, YMax: t.Records[0].Y,
	}
	for _, r := range t.Records[1:] {
		b.XMin = min(b.XMin, r.X)
		b.XMax = max(b.XMax, r.X)
		b.YMin = min(b.YMin, r.Y)
		b.YMax = max(b.YMax, r.Y)
	}
	return b
}

// SceneStats summarises one unit's merged table.
type SceneStats struct {
	Bounds Bounds

	Points           int
	VegetationPoints int
	Instances        int

	AreaM2       float64
	AreaHa       float64
	StemDensity  float64 // instances per hectare
	PointDensity float64 // points per square metre

	// Degenerate is set when the raw planar area fell below MinArea, as
	// for a single point or a collinear scene. Densities are then computed
	// against MinArea.
	Degenerate bool

	ClassCounts map[int]int

	ZMin, ZMax float64
	ZMean      float64
	ZP95       float64
}

// Compute derives SceneStats from t. veg selects the classes whose
// instances are counted as stems.
func Compute(t l1records.Table, veg semantics.LabelSet) (SceneStats, error) {
	if t.Empty() {
		return SceneStats{}, ErrEmptyTable
	}

	s := SceneStats{
		Bounds:      BoundsOf(t),
		Points:      t.Len(),
		ClassCounts: make(map[int]int),
	}

	instances := make(map[int64]struct{})
	z := make([]float64, t.Len())
	for i, r := range t.Records {
		z[i] = r.Z
		s.ClassCounts[r.ClassID]++
		if veg.Contains(r.ClassID) {
			s.VegetationPoints++
			instances[r.InstanceID] = struct{}{}
		}
	}
	s.Instances = len(instances)

	raw := s.Bounds.Width() * s.Bounds.Height()
	s.Degenerate = raw < MinArea
	s.AreaM2 = max(raw, MinArea)
	s.AreaHa = s.AreaM2 / squareMetresPerHectare
	s.StemDensity = float64(s.Instances) / s.AreaHa
	s.PointDensity = float64(s.Points) / s.AreaM2

	s.ZMin = floats.Min(z)
	s.ZMax = floats.Max(z)
	s.ZMean = stat.Mean(z, nil)
	sort.Float64s(z)
	s.ZP95 = stat.Quantile(0.95, stat.Empirical, z, nil)

	return s, nil
}

// Classes returns the class ids present, ascending.
func (s SceneStats) Classes() []int {
	out := make([]int, 0, len(s.ClassCounts))
	for c := range s.ClassCounts {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// String renders the multi-line summary printed for each unit.
func (s SceneStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scene stats for area %.1f m² (%.4f ha):\n", s.AreaM2, s.AreaHa)
	fmt.Fprintf(&b, "  #Trees: %d  →  Stem density: %.2f trees/ha\n", s.Instances, s.StemDensity)
	fmt.Fprintf(&b, "  Total points: %d → Point density: %.3f pts/m²\n", s.Points, s.PointDensity)
	fmt.Fprintf(&b, "  Height: min %.2f  mean %.2f  p95 %.2f  max %.2f m", s.ZMin, s.ZMean, s.ZP95, s.ZMax)
	if classes := s.Classes(); len(classes) > 0 {
		b.WriteString("\n  Classes:")
		for _, c := range classes {
			fmt.Fprintf(&b, " %d=%d", c, s.ClassCounts[c])
		}
	}
	return b.String()
}
