package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RunRow is one row of the runs table.
type RunRow struct {
	ID           string
	StartedAt    int64
	FinishedAt   int64 // 0 while the run is in progress
	InputRoot    string
	OutputRoot   string
	Layout       string
	TileSize     float64
	Format       string
	Policy       string
	UnitsOK      int
	UnitsSkipped int
	UnitsFailed  int
}

// UnitRow is one row of the units table.
type UnitRow struct {
	Unit     string
	Layout   string
	Scene    string
	Records  int
	Status   string
	Error    string
	Selected int
	GridNX   int
	GridNY   int

	ElapsedMS int64
}

// TileRow is one row of the tiles table.
type TileRow struct {
	Unit   string
	Seq    int
	IX, IY int
	Points int
	Path   string
	Bytes  int64
	SHA256 string
}

// Runs lists every run, most recent first.
func (s *Store) Runs(ctx context.Context) ([]RunRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, input_root, output_root, layout,
		       tile_size, format, policy, units_ok, units_skipped, units_failed
		FROM runs
		ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var finished sql.NullInt64
		var kind sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.InputRoot, &r.OutputRoot, &kind,
			&r.TileSize, &r.Format, &r.Policy, &r.UnitsOK, &r.UnitsSkipped, &r.UnitsFailed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.FinishedAt = finished.Int64
		r.Layout = kind.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Units lists the units of a run ordered by name.
func (s *Store) Units(ctx context.Context, runID string) ([]UnitRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit, layout, scene, records, status, error, selected, grid_nx, grid_ny, elapsed_ms
		FROM units
		WHERE run_id = ?
		ORDER BY unit`, runID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var out []UnitRow
	for rows.Next() {
		var u UnitRow
		var scene, errText sql.NullString
		var selected, nx, ny sql.NullInt64
		if err := rows.Scan(&u.Unit, &u.Layout, &scene, &u.Records, &u.Status, &errText, &selected, &nx, &ny, &u.ElapsedMS); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		u.Scene = scene.String
		u.Error = errText.String
		u.Selected = int(selected.Int64)
		u.GridNX = int(nx.Int64)
		u.GridNY = int(ny.Int64)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Tiles lists the tiles of a run ordered by unit and sequence number.
func (s *Store) Tiles(ctx context.Context, runID string) ([]TileRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit, seq, ix, iy, points, path, bytes, sha256
		FROM tiles
		WHERE run_id = ?
		ORDER BY unit, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tiles: %w", err)
	}
	defer rows.Close()

	var out []TileRow
	for rows.Next() {
		var t TileRow
		if err := rows.Scan(&t.Unit, &t.Seq, &t.IX, &t.IY, &t.Points, &t.Path, &t.Bytes, &t.SHA256); err != nil {
			return nil, fmt.Errorf("scan tile: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TileDiff describes a tile whose content differs between two runs, or
// that exists in only one of them. A missing side has an empty hash.
type TileDiff struct {
	Unit       string
	Seq        int
	BaseSHA256 string
	NextSHA256 string
}

func (d TileDiff) String() string {
	short := func(h string) string {
		if h == "" {
			return "missing"
		}
		return h[:min(12, len(h))]
	}
	return fmt.Sprintf("%s tile %d: %s -> %s", d.Unit, d.Seq, short(d.BaseSHA256), short(d.NextSHA256))
}

// ErrUnknownRun is returned for a run id with no runs row.
var ErrUnknownRun = errors.New("unknown run")

func (s *Store) checkRun(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w %q", ErrUnknownRun, id)
	case err != nil:
		return fmt.Errorf("look up run %s: %w", id, err)
	}
	return nil
}

// DiffRuns compares the tile hashes of two runs. Identical input and
// configuration must produce no differences. Both runs must exist.
func (s *Store) DiffRuns(ctx context.Context, base, next string) ([]TileDiff, error) {
	for _, id := range []string{base, next} {
		if err := s.checkRun(ctx, id); err != nil {
			return nil, err
		}
	}
	a, err := s.Tiles(ctx, base)
	if err != nil {
		return nil, err
	}
	b, err := s.Tiles(ctx, next)
	if err != nil {
		return nil, err
	}

	type key struct {
		unit string
		seq  int
	}
	hashes := make(map[key]*TileDiff)
	var order []key
	get := func(k key) *TileDiff {
		d, ok := hashes[k]
		if !ok {
			d = &TileDiff{Unit: k.unit, Seq: k.seq}
			hashes[k] = d
			order = append(order, k)
		}
		return d
	}
	for _, t := range a {
		get(key{t.Unit, t.Seq}).BaseSHA256 = t.SHA256
	}
	for _, t := range b {
		get(key{t.Unit, t.Seq}).NextSHA256 = t.SHA256
	}

	var out []TileDiff
	for _, k := range order {
		if d := hashes[k]; d.BaseSHA256 != d.NextSHA256 {
			out = append(out, *d)
		}
	}
	return out, nil
}
