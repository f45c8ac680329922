// Command canopy-tiles turns LiDAR simulation return records into tiled,
// semantically labelled point clouds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/canopy.tiles/internal/config"
	"github.com/banshee-data/canopy.tiles/internal/fsutil"
	"github.com/banshee-data/canopy.tiles/internal/lidar"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l4export"
	"github.com/banshee-data/canopy.tiles/internal/lidar/layout"
	"github.com/banshee-data/canopy.tiles/internal/lidar/manifest"
	"github.com/banshee-data/canopy.tiles/internal/lidar/monitor"
	"github.com/banshee-data/canopy.tiles/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.tiles/internal/version"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type flags struct {
	fs *flag.FlagSet

	configPath  *string
	input       *string
	output      *string
	tileSize    *float64
	mergeAllTS  *bool
	groundLabel *int
	woodLabel   *int
	leafLabel   *int
	leafWood    *bool
	format      *string
	workers     *int
	manifestDB  *string
	report      *bool
	diffRun     *string
	listRuns    *bool
	quiet       *bool
	trace       *bool
	showVersion *bool
}

func newFlags(stderr io.Writer) *flags {
	fs := flag.NewFlagSet("canopy-tiles", flag.ContinueOnError)
	fs.SetOutput(stderr)
	return &flags{
		fs:          fs,
		configPath:  fs.String("config", "", "Path to a .json, .yaml or .yml config file (postprocess section or flat)"),
		input:       fs.String("input", "", "Input root: a timestamp directory, a scene directory or a directory of scenes"),
		output:      fs.String("output", config.DefaultOutputRoot, "Output root directory"),
		tileSize:    fs.Float64("tile-size", config.DefaultTileSize, "Tile edge length in metres"),
		mergeAllTS:  fs.Bool("merge-all-ts", false, "Merge every timestamp directory instead of using only the latest"),
		groundLabel: fs.Int("ground-label", 2, "Class label of ground points"),
		woodLabel:   fs.Int("wood-label", 3, "Class label of wood points"),
		leafLabel:   fs.Int("leaf-label", 4, "Class label of leaf points"),
		leafWood:    fs.Bool("leafwood", false, "Keep leaves as vegetation and preserve wood/leaf labels"),
		format:      fs.String("format", config.DefaultFormat, fmt.Sprintf("Output format %v", l4export.Formats())),
		workers:     fs.Int("workers", config.DefaultWorkers, "Units processed concurrently"),
		manifestDB:  fs.String("manifest", "", "SQLite run manifest to record runs, units and tile hashes in"),
		report:      fs.Bool("report", false, "Write a PNG tile map and HTML tile chart per unit"),
		diffRun:     fs.String("diff-run", "", "Compare tile hashes against an earlier manifest run id"),
		listRuns:    fs.Bool("list-runs", false, "List the runs and units recorded in the manifest and exit"),
		quiet:       fs.Bool("quiet", false, "Suppress informational output"),
		trace:       fs.Bool("trace", false, "Enable per-file trace logging on stderr"),
		showVersion: fs.Bool("version", false, "Print version and exit"),
	}
}

// overrides returns the flags given explicitly on the command line, so that
// flag defaults never mask config file values.
func (f *flags) overrides() config.Overrides {
	var o config.Overrides
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "input":
			o.InputRoot = f.input
		case "output":
			o.OutputRoot = f.output
		case "tile-size":
			o.TileSize = f.tileSize
		case "merge-all-ts":
			o.MergeAllTS = f.mergeAllTS
		case "ground-label":
			o.GroundLabel = f.groundLabel
		case "wood-label":
			o.WoodLabel = f.woodLabel
		case "leaf-label":
			o.LeafLabel = f.leafLabel
		case "leafwood":
			o.LeafWood = f.leafWood
		case "format":
			o.Format = f.format
		case "workers":
			o.Workers = f.workers
		case "manifest":
			o.ManifestDB = f.manifestDB
		case "report":
			o.Report = f.report
		}
	})
	if o.InputRoot == nil && f.fs.NArg() > 0 {
		arg := f.fs.Arg(0)
		o.InputRoot = &arg
	}
	return o
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f := newFlags(stderr)
	if err := f.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if *f.showVersion {
		fmt.Fprintln(stdout, version.String("canopy-tiles"))
		return exitOK
	}

	writers := lidar.LogWriters{Ops: stderr, Diag: stdout}
	if *f.quiet {
		writers.Diag = nil
	}
	if *f.trace {
		writers.Trace = stderr
	}
	lidar.SetLogWriters(writers)
	info := func(format string, args ...any) {
		if !*f.quiet {
			fmt.Fprintf(stdout, "[INFO] "+format+"\n", args...)
		}
	}

	cfg := config.EmptyProcessingConfig()
	if *f.configPath != "" {
		loaded, err := config.LoadProcessingConfig(*f.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "[ERROR] %v\n", err)
			return exitUsage
		}
		cfg = loaded
	}
	f.overrides().Apply(cfg)
	if *f.listRuns {
		if cfg.GetManifestDB() == "" {
			fmt.Fprintln(stderr, "[ERROR] -list-runs requires a manifest")
			return exitUsage
		}
		return listRuns(ctx, cfg.GetManifestDB(), stdout, stderr)
	}
	if err := cfg.ValidateForRun(); err != nil {
		fmt.Fprintf(stderr, "[ERROR] %v\n", err)
		return exitUsage
	}
	if *f.diffRun != "" && cfg.GetManifestDB() == "" {
		fmt.Fprintln(stderr, "[ERROR] -diff-run requires a manifest")
		return exitUsage
	}

	policy := cfg.Policy()
	info("Processing scenes from: %s", cfg.GetInputRoot())
	info("Output directory: %s", cfg.GetOutputRoot())
	info("Tile size: %gm", cfg.GetTileSize())
	info("Merge all timestamps: %t", cfg.GetMergeAllTS())
	info("Labels - Ground: %d, Wood: %d, Leaf: %d", policy.Ground, policy.Wood, policy.Leaf)
	info("Leafwood mode: %t", policy.LeafWood)
	info("Format: %s, workers: %d", cfg.GetFormat(), cfg.GetWorkers())

	fsys := fsutil.OSFileSystem{}
	if err := fsys.MkdirAll(cfg.GetOutputRoot(), 0755); err != nil {
		fmt.Fprintf(stderr, "[ERROR] create output root: %v\n", err)
		return exitFailed
	}

	writer, err := l4export.NewTileWriter(fsys, cfg.GetFormat())
	if err != nil {
		fmt.Fprintf(stderr, "[ERROR] %v\n", err)
		return exitUsage
	}
	loader := l1records.NewLoader(fsys)
	loader.Pattern = cfg.GetPattern()

	d := &layout.Dispatcher{
		Loader: loader,
		Pipeline: pipeline.Config{
			OutputRoot: cfg.GetOutputRoot(),
			TileSize:   cfg.GetTileSize(),
			Policy:     policy,
			Writer:     writer,
		},
		MergeAll: cfg.GetMergeAllTS(),
		Workers:  cfg.GetWorkers(),
	}
	if cfg.GetReport() {
		d.Pipeline.Report = monitor.NewReporter(fsys, policy)
	}

	var (
		store *manifest.Store
		mrun  *manifest.Run
	)
	if path := cfg.GetManifestDB(); path != "" {
		store, err = manifest.Open(path)
		if err != nil {
			fmt.Fprintf(stderr, "[ERROR] %v\n", err)
			return exitFailed
		}
		defer store.Close()

		mrun, err = store.BeginRun(ctx, manifest.RunInfo{
			InputRoot:  cfg.GetInputRoot(),
			OutputRoot: cfg.GetOutputRoot(),
			TileSize:   cfg.GetTileSize(),
			Format:     cfg.GetFormat(),
			Policy:     policy.String(),
		})
		if err != nil {
			fmt.Fprintf(stderr, "[ERROR] %v\n", err)
			return exitFailed
		}
		d.Recorder = mrun
		info("Manifest run: %s", mrun.ID)
	}

	report, runErr := d.Run(ctx, cfg.GetInputRoot())
	if mrun != nil && report != nil {
		if err := mrun.Finish(context.WithoutCancel(ctx), report); err != nil {
			lidar.Opsf("%v", err)
		}
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "[ERROR] %v\n", runErr)
		return exitFailed
	}

	ok, skipped, failed := report.Counts()
	tiles := 0
	for _, u := range report.Units {
		if u.Result != nil {
			tiles += len(u.Result.Tiles)
		}
	}
	info("Layout: %s", report.Plan.Layout)
	info("Done: %d unit(s) processed, %d skipped, %d failed, %d tile(s) written", ok, skipped, failed, tiles)
	for _, u := range report.Units {
		if u.Failed() {
			fmt.Fprintf(stderr, "[ERROR] %s: %v\n", u.Unit.Name, u.Err)
		}
	}

	code := exitOK
	if report.Failed() {
		code = exitFailed
	}

	if *f.diffRun != "" {
		diffs, err := store.DiffRuns(ctx, *f.diffRun, mrun.ID)
		if err != nil {
			fmt.Fprintf(stderr, "[ERROR] %v\n", err)
			return exitFailed
		}
		for _, df := range diffs {
			fmt.Fprintf(stdout, "[DIFF] %s\n", df)
		}
		info("%d tile(s) differ from run %s", len(diffs), *f.diffRun)
		if len(diffs) > 0 {
			code = exitFailed
		}
	}
	return code
}

// listRuns prints every manifest run, most recent first, with its units.
func listRuns(ctx context.Context, path string, stdout, stderr io.Writer) int {
	store, err := manifest.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "[ERROR] %v\n", err)
		return exitFailed
	}
	defer store.Close()

	version, dirty, err := store.MigrateVersion()
	if err != nil {
		fmt.Fprintf(stderr, "[ERROR] %v\n", err)
		return exitFailed
	}
	runs, err := store.Runs(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "[ERROR] %v\n", err)
		return exitFailed
	}
	fmt.Fprintf(stdout, "Manifest %s: schema v%d (dirty=%t), %d run(s)\n", path, version, dirty, len(runs))

	for _, r := range runs {
		started := time.Unix(0, r.StartedAt).UTC().Format(time.RFC3339)
		kind := r.Layout
		if r.FinishedAt == 0 {
			kind = "unfinished"
		}
		fmt.Fprintf(stdout, "%s  %s  %s  ok=%d skipped=%d failed=%d  %s\n",
			r.ID, started, kind, r.UnitsOK, r.UnitsSkipped, r.UnitsFailed, r.InputRoot)

		units, err := store.Units(ctx, r.ID)
		if err != nil {
			fmt.Fprintf(stderr, "[ERROR] %v\n", err)
			return exitFailed
		}
		for _, u := range units {
			line := fmt.Sprintf("    %-24s %-7s records=%d elapsed=%dms", u.Unit, u.Status, u.Records, u.ElapsedMS)
			if u.Error != "" {
				line += "  " + u.Error
			}
			fmt.Fprintln(stdout, line)
		}
	}
	return exitOK
}
