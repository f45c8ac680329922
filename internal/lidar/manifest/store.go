package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/canopy.tiles/internal/lidar/layout"
	"github.com/banshee-data/canopy.tiles/internal/timeutil"
)

// Unit status values stored in units.status.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store is a run manifest database. It holds a single connection, so every
// method is safe for concurrent use.
type Store struct {
	db *sql.DB

	// Clock stamps run start and finish times.
	Clock timeutil.Clock
}

// Open opens (creating if needed) the manifest at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, multierr.Combine(fmt.Errorf("%s: %w", p, err), db.Close())
		}
	}

	s := &Store{db: db, Clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		return nil, multierr.Combine(fmt.Errorf("migrate manifest %s: %w", path, err), db.Close())
	}
	diagf("manifest ready at %s", path)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) now() int64 {
	return timeutil.OrReal(s.Clock).Now().UnixNano()
}

// RunInfo describes the configuration a run was started with.
type RunInfo struct {
	InputRoot  string
	OutputRoot string
	TileSize   float64
	Format     string
	Policy     string
}

// Run is one started run. It implements layout.UnitRecorder.
type Run struct {
	ID    string
	store *Store
}

// BeginRun inserts a new run row with a fresh UUID.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (*Run, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, input_root, output_root, tile_size, format, policy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, s.now(), info.InputRoot, info.OutputRoot, info.TileSize, info.Format, info.Policy,
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	diagf("run %s started", id)
	return &Run{ID: id, store: s}, nil
}

// RecordUnit stores one unit outcome and the tiles it wrote in a single
// transaction.
func (r *Run) RecordUnit(ctx context.Context, rep layout.UnitReport) (err error) {
	sources, err := json.Marshal(rep.Unit.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}

	var errText sql.NullString
	if rep.Err != nil {
		errText = sql.NullString{String: rep.Err.Error(), Valid: true}
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit %s: %w", rep.Unit.Name, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); !errors.Is(rbErr, sql.ErrTxDone) {
				err = multierr.Append(err, rbErr)
			}
		}
	}()

	var (
		outDir                       sql.NullString
		veg, inst, nx, ny, selected  sql.NullInt64
		area, stemDensity, ptDensity sql.NullFloat64
		degenerate                   sql.NullBool
	)
	if res := rep.Result; res != nil && res.OutputDir != "" {
		st := res.Stats
		outDir = sql.NullString{String: res.OutputDir, Valid: true}
		veg = sql.NullInt64{Int64: int64(st.VegetationPoints), Valid: true}
		inst = sql.NullInt64{Int64: int64(st.Instances), Valid: true}
		area = sql.NullFloat64{Float64: st.AreaM2, Valid: true}
		stemDensity = sql.NullFloat64{Float64: st.StemDensity, Valid: true}
		ptDensity = sql.NullFloat64{Float64: st.PointDensity, Valid: true}
		degenerate = sql.NullBool{Bool: st.Degenerate, Valid: true}
		nx = sql.NullInt64{Int64: int64(res.Grid.NX), Valid: true}
		ny = sql.NullInt64{Int64: int64(res.Grid.NY), Valid: true}
		selected = sql.NullInt64{Int64: int64(res.Selected), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO units (
			run_id, unit, layout, scene, sources_json, records, status, error,
			output_dir, vegetation_points, instances, area_m2, stem_density,
			point_density, degenerate, grid_nx, grid_ny, selected, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, rep.Unit.Name, string(rep.Unit.Layout), rep.Unit.Scene, string(sources),
		rep.Records, status(rep), errText,
		outDir, veg, inst, area, stemDensity,
		ptDensity, degenerate, nx, ny, selected, rep.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert unit %s: %w", rep.Unit.Name, err)
	}

	if rep.Result != nil {
		for _, t := range rep.Result.Tiles {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO tiles (run_id, unit, seq, ix, iy, points, path, bytes, sha256)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, rep.Unit.Name, t.Seq, t.IX, t.IY, t.File.Points, t.File.Path, t.File.Bytes, t.File.SHA256,
			)
			if err != nil {
				return fmt.Errorf("insert tile %s/%d: %w", rep.Unit.Name, t.Seq, err)
			}
			tracef("run %s: %s tile %d -> %s", r.ID, rep.Unit.Name, t.Seq, t.File.SHA256)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit unit %s: %w", rep.Unit.Name, err)
	}
	return nil
}

// Finish stamps the run with its detected layout, unit counts and end time.
func (r *Run) Finish(ctx context.Context, rep *layout.Report) error {
	var kind sql.NullString
	var ok, skipped, failed int
	if rep != nil {
		if rep.Plan != nil {
			kind = sql.NullString{String: string(rep.Plan.Layout), Valid: true}
		}
		ok, skipped, failed = rep.Counts()
	}
	_, err := r.store.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, layout = ?, units_ok = ?, units_skipped = ?, units_failed = ?
		WHERE run_id = ?`,
		r.store.now(), kind, ok, skipped, failed, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	diagf("run %s finished: %d ok, %d skipped, %d failed", r.ID, ok, skipped, failed)
	return nil
}

func status(rep layout.UnitReport) string {
	switch {
	case rep.Skipped():
		return StatusSkipped
	case rep.Failed():
		return StatusFailed
	default:
		return StatusOK
	}
}
