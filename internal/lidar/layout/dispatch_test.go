package layout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/canopy.tiles/internal/fsutil"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l4export"
	"github.com/banshee-data/canopy.tiles/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
	"github.com/banshee-data/canopy.tiles/internal/timeutil"
)

const scenarioRecords = "" +
	"0 0 1 10 0 0 0 0 0 2\n" +
	"100 100 1 10 0 0 0 0 0 2\n" +
	"9 10 5 20 0 0 0 0 5 3\n" +
	"10 10 6 20 0 0 0 0 5 3\n" +
	"11 10 7 20 0 0 0 0 5 3\n"

func newDispatcher(t *testing.T, mfs *fsutil.MemoryFileSystem) *Dispatcher {
	t.Helper()
	w, err := l4export.NewTileWriter(mfs, l4export.FormatPLY)
	require.NoError(t, err)
	return &Dispatcher{
		Loader: l1records.NewLoader(mfs),
		Pipeline: pipeline.Config{
			OutputRoot: "/out",
			TileSize:   50,
			Policy:     semantics.DefaultPolicy(),
			Writer:     w,
		},
	}
}

func scenesFS(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/in/good/t1/leg000_points.xyz", []byte(scenarioRecords), 0644))
	require.NoError(t, mfs.WriteFile("/in/narrow/t1/leg000_points.xyz", []byte("1 2 3 4 5 6 7 8 9\n"), 0644))
	require.NoError(t, mfs.MkdirAll("/in/vacant/t1", 0755))
	return mfs
}

func TestDispatcher_ContinuesPastFormatError(t *testing.T) {
	mfs := scenesFS(t)
	d := newDispatcher(t, mfs)

	report, err := d.Run(context.Background(), "/in")
	require.NoError(t, err)

	require.Len(t, report.Units, 3)
	assert.Equal(t, KindScenes, report.Plan.Layout)

	good, narrow, vacant := report.Units[0], report.Units[1], report.Units[2]
	assert.NoError(t, good.Err)
	assert.Equal(t, 5, good.Records)
	require.NotNil(t, good.Result)
	assert.Len(t, good.Result.Tiles, 2)

	var fe *l1records.FormatError
	assert.True(t, errors.As(narrow.Err, &fe), "got %v", narrow.Err)
	assert.True(t, narrow.Failed())

	var ee *l1records.EmptyInputError
	assert.True(t, errors.As(vacant.Err, &ee), "got %v", vacant.Err)
	assert.True(t, vacant.Skipped())
	assert.False(t, vacant.Failed())

	assert.True(t, report.Failed())
	ok, skipped, failed := report.Counts()
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{ok, skipped, failed})

	assert.Equal(t, []string{
		"/out/good/good_plot_0_annotated.ply",
		"/out/good/good_plot_1_annotated.ply",
	}, outputs(mfs))
}

func TestDispatcher_EmptyUnitDirectory(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/in/empty", 0755))
	d := newDispatcher(t, mfs)

	report, err := d.Run(context.Background(), "/in/empty")
	require.NoError(t, err)

	require.Len(t, report.Units, 1)
	assert.True(t, report.Units[0].Skipped())
	assert.False(t, report.Failed())
	assert.Empty(t, outputs(mfs))
}

func TestDispatcher_MissingRoot(t *testing.T) {
	d := newDispatcher(t, fsutil.NewMemoryFileSystem())

	_, err := d.Run(context.Background(), "/nowhere")

	var pe *PathError
	assert.True(t, errors.As(err, &pe), "got %v", err)
}

func TestDispatcher_ParallelMatchesSequential(t *testing.T) {
	build := func() *fsutil.MemoryFileSystem {
		mfs := fsutil.NewMemoryFileSystem()
		for _, scene := range []string{"a", "b", "c", "d", "e"} {
			require.NoError(t, mfs.WriteFile("/in/"+scene+"/t1/leg000_points.xyz", []byte(scenarioRecords), 0644))
		}
		return mfs
	}

	seqFS := build()
	_, err := newDispatcher(t, seqFS).Run(context.Background(), "/in")
	require.NoError(t, err)

	parFS := build()
	d := newDispatcher(t, parFS)
	d.Workers = 4
	report, err := d.Run(context.Background(), "/in")
	require.NoError(t, err)
	assert.False(t, report.Failed())
	assert.Len(t, report.Units, 5)

	assert.Equal(t, outputs(seqFS), outputs(parFS))
	assert.Len(t, outputs(parFS), 10)
	for _, f := range outputs(seqFS) {
		a, _ := seqFS.ReadFile(f)
		b, _ := parFS.ReadFile(f)
		assert.Equal(t, a, b, f)
	}
}

func TestDispatcher_CancelledContext(t *testing.T) {
	mfs := scenesFS(t)
	d := newDispatcher(t, mfs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := d.Run(ctx, "/in")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outputs(mfs))

	require.NotNil(t, report)
	require.Len(t, report.Units, 3)
	for _, u := range report.Units {
		assert.ErrorIs(t, u.Err, ErrNotRun, u.Unit.Name)
		assert.ErrorIs(t, u.Err, context.Canceled, u.Unit.Name)
	}
	ok, skipped, failed := report.Counts()
	assert.Equal(t, [3]int{0, 0, 3}, [3]int{ok, skipped, failed})
}

func TestDispatcher_RecorderFailureLeavesLaterUnitsNotRun(t *testing.T) {
	mfs := scenesFS(t)
	d := newDispatcher(t, mfs)
	d.Recorder = &memRecorder{err: errors.New("disk full")}

	report, err := d.Run(context.Background(), "/in")
	require.ErrorContains(t, err, "disk full")
	require.NotNil(t, report)

	// Workers defaults to 1, so only the first unit ran.
	assert.Equal(t, "good", report.Units[0].Unit.Name)
	assert.NoError(t, report.Units[0].Err)
	for _, u := range report.Units[1:] {
		assert.ErrorIs(t, u.Err, ErrNotRun, u.Unit.Name)
	}
	ok, _, failed := report.Counts()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, failed)
}

type memRecorder struct {
	mu    sync.Mutex
	units []string
	err   error
}

func (r *memRecorder) RecordUnit(ctx context.Context, rep UnitReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = append(r.units, rep.Unit.Name)
	return r.err
}

func TestDispatcher_Recorder(t *testing.T) {
	mfs := scenesFS(t)
	d := newDispatcher(t, mfs)
	rec := &memRecorder{}
	d.Recorder = rec

	_, err := d.Run(context.Background(), "/in")
	require.NoError(t, err)
	assert.Equal(t, []string{"good", "narrow", "vacant"}, rec.units)

	rec.err = errors.New("database is locked")
	_, err = d.Run(context.Background(), "/in")
	assert.ErrorContains(t, err, "database is locked")
}

func outputs(mfs *fsutil.MemoryFileSystem) []string {
	var out []string
	for _, f := range mfs.Files() {
		if len(f) > 5 && f[:5] == "/out/" {
			out = append(out, f)
		}
	}
	return out
}

func TestDispatcher_TimesEachUnit(t *testing.T) {
	mfs := scenesFS(t)
	d := newDispatcher(t, mfs)
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	clock.AutoAdvance(time.Second)
	d.Clock = clock

	report, err := d.Run(context.Background(), "/in")
	require.NoError(t, err)
	for _, u := range report.Units {
		assert.Equal(t, time.Second, u.Elapsed, u.Unit.Name)
	}
}
