package pipeline

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/canopy.tiles/internal/fsutil"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l4export"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

func rec(x, y float64, class int, instance int64) l1records.Record {
	return l1records.Record{X: x, Y: y, Z: 1, Intensity: 10, ClassID: class, InstanceID: instance}
}

func tableOf(recs ...l1records.Record) l1records.Table {
	return l1records.Table{Records: recs, Columns: l1records.MinColumns}
}

func newConfig(t *testing.T, fs fsutil.FileSystem, p semantics.Policy) Config {
	t.Helper()
	w, err := l4export.NewTileWriter(fs, l4export.FormatPLY)
	require.NoError(t, err)
	return Config{OutputRoot: "/out", TileSize: 50, Policy: p, Writer: w}
}

// decodePLY reads back a binary PLY written by l4export.PLYEncoder.
func decodePLY(t *testing.T, data []byte) []l4export.Point {
	t.Helper()
	const marker = "end_header\n"
	i := bytes.Index(data, []byte(marker))
	require.GreaterOrEqual(t, i, 0, "missing end_header")
	body := data[i+len(marker):]
	require.Zero(t, len(body)%24)

	var pts []l4export.Point
	for off := 0; off < len(body); off += 24 {
		f := func(k int) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(body[off+4*k:]))
		}
		pts = append(pts, l4export.Point{X: f(0), Y: f(1), Z: f(2), Intensity: f(3), SemanticSeg: f(4), TreeID: f(5)})
	}
	return pts
}

func scenario() l1records.Table {
	return tableOf(
		rec(0, 0, 2, 0),
		rec(100, 100, 2, 0),
		rec(9, 10, 3, 5),
		rec(10, 10, 3, 5),
		rec(11, 10, 3, 5),
	)
}

func TestProcessUnit_TwoTiles(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	cfg := newConfig(t, mfs, semantics.DefaultPolicy())

	res, err := ProcessUnit(scenario(), Unit{Name: "forest", Sources: []string{"/in/forest"}}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "/out/forest", res.OutputDir)
	assert.Equal(t, 2, res.Grid.NX)
	assert.Equal(t, 2, res.Grid.NY)
	assert.Equal(t, 1, res.Stats.Instances)
	assert.Equal(t, 5, res.Selected)
	require.Len(t, res.Tiles, 2)

	assert.Equal(t, []string{
		"/out/forest/forest_plot_0_annotated.ply",
		"/out/forest/forest_plot_1_annotated.ply",
	}, mfs.Files())

	data, err := mfs.ReadFile("/out/forest/forest_plot_0_annotated.ply")
	require.NoError(t, err)
	pts := decodePLY(t, data)
	require.Len(t, pts, 4)
	assert.Equal(t, l4export.Point{X: 0, Y: 0, Z: 1, Intensity: 10, SemanticSeg: 1, TreeID: -1}, pts[0])
	for _, p := range pts[1:] {
		assert.Equal(t, float32(2), p.SemanticSeg)
		assert.Equal(t, float32(5), p.TreeID)
	}

	data, err = mfs.ReadFile("/out/forest/forest_plot_1_annotated.ply")
	require.NoError(t, err)
	pts = decodePLY(t, data)
	require.Len(t, pts, 1)
	assert.Equal(t, float32(100), pts[0].X)
}

func TestProcessUnit_EmptyTable(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	cfg := newConfig(t, mfs, semantics.DefaultPolicy())

	res, err := ProcessUnit(l1records.EmptyTable(), Unit{Name: "empty", Sources: []string{"/in/empty"}}, cfg)

	var ee *l1records.EmptyInputError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Equal(t, []string{"/in/empty"}, ee.Dirs)
	assert.NotNil(t, res)
	assert.Empty(t, mfs.Files())
}

func TestProcessUnit_LeafWoodLabels(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	p := semantics.DefaultPolicy()
	p.LeafWood = true
	cfg := newConfig(t, mfs, p)

	tbl := tableOf(
		rec(0, 0, 2, 0),
		rec(100, 100, 2, 0),
		rec(45, 10, 3, 8),
		rec(47, 10, 3, 8),
		rec(53, 10, 4, 8),
	)
	res, err := ProcessUnit(tbl, Unit{Name: "lw"}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Tiles, 2)

	data, err := mfs.ReadFile(res.Tiles[0].File.Path)
	require.NoError(t, err)
	pts := decodePLY(t, data)
	require.Len(t, pts, 4)

	var segs []float32
	for _, pt := range pts {
		segs = append(segs, pt.SemanticSeg)
	}
	assert.Equal(t, []float32{2, 3, 3, 4}, segs, "original classes are preserved")
	assert.Equal(t, []float32{-1, 8, 8, 8}, []float32{pts[0].TreeID, pts[1].TreeID, pts[2].TreeID, pts[3].TreeID})
}

func TestProcessUnit_CollapsedLabelsAreBinary(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	cfg := newConfig(t, mfs, semantics.DefaultPolicy())

	res, err := ProcessUnit(scenario(), Unit{Name: "bin"}, cfg)
	require.NoError(t, err)

	for _, tile := range res.Tiles {
		data, err := mfs.ReadFile(tile.File.Path)
		require.NoError(t, err)
		for _, pt := range decodePLY(t, data) {
			assert.Contains(t, []float32{1, 2}, pt.SemanticSeg)
		}
	}
}

func TestProcessUnit_Deterministic(t *testing.T) {
	run := func() []string {
		mfs := fsutil.NewMemoryFileSystem()
		res, err := ProcessUnit(scenario(), Unit{Name: "forest"}, newConfig(t, mfs, semantics.DefaultPolicy()))
		require.NoError(t, err)
		var sums []string
		for _, tile := range res.Tiles {
			sums = append(sums, tile.File.Path+"@"+tile.File.SHA256)
		}
		return sums
	}

	first := run()
	assert.Equal(t, first, run())
	assert.Len(t, first, 2)
}

func TestProcessUnit_InvalidTileSize(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	cfg := newConfig(t, mfs, semantics.DefaultPolicy())
	cfg.TileSize = 0

	_, err := ProcessUnit(scenario(), Unit{Name: "forest"}, cfg)
	assert.Error(t, err)
	assert.Empty(t, mfs.Files())
}

func TestProcessUnit_RejectsEscapingUnitName(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	cfg := newConfig(t, mfs, semantics.DefaultPolicy())

	_, err := ProcessUnit(scenario(), Unit{Name: "../escape"}, cfg)
	assert.Error(t, err)
	assert.Empty(t, mfs.Files())
}

func TestProcessUnit_NoWriter(t *testing.T) {
	_, err := ProcessUnit(scenario(), Unit{Name: "forest"}, Config{TileSize: 50})
	assert.Error(t, err)
}

// ----------------------------------------------------------------------------
// Report sink
// ----------------------------------------------------------------------------

type recordingSink struct {
	calls int
	tiles int
	err   error
}

func (s *recordingSink) ReportUnit(t l1records.Table, res *Result) error {
	s.calls++
	s.tiles = len(res.Tiles)
	return s.err
}

func TestProcessUnit_ReportSink(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	cfg := newConfig(t, mfs, semantics.DefaultPolicy())
	sink := &recordingSink{}
	cfg.Report = sink

	_, err := ProcessUnit(scenario(), Unit{Name: "forest"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, 2, sink.tiles)

	sink.err = errors.New("plot failed")
	_, err = ProcessUnit(scenario(), Unit{Name: "forest"}, cfg)
	assert.NoError(t, err, "report errors do not fail the unit")
}

func TestProcessUnit_TypedNilReportSink(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	cfg := newConfig(t, mfs, semantics.DefaultPolicy())
	var sink *recordingSink
	cfg.Report = sink

	_, err := ProcessUnit(scenario(), Unit{Name: "forest"}, cfg)
	assert.NoError(t, err)
}

func TestIsNilInterface(t *testing.T) {
	var p *recordingSink
	assert.True(t, isNilInterface(nil))
	assert.True(t, isNilInterface(p))
	assert.False(t, isNilInterface(&recordingSink{}))
	assert.False(t, isNilInterface(42))
}
