package l1records

import (
	"errors"
	"fmt"

	"github.com/banshee-data/canopy.tiles/internal/fsutil"
)

// DefaultPattern matches the per-leg files written by the simulator.
const DefaultPattern = "leg*_points.xyz"

// Loader reads record files from unit directories.
type Loader struct {
	FS      fsutil.FileSystem
	Pattern string
}

// NewLoader returns a Loader using DefaultPattern.
func NewLoader(fsys fsutil.FileSystem) *Loader {
	return &Loader{FS: fsys, Pattern: DefaultPattern}
}

func (l *Loader) pattern() string {
	if l.Pattern == "" {
		return DefaultPattern
	}
	return l.Pattern
}

// Files lists the record files directly inside dir in lexicographic order.
func (l *Loader) Files(dir string) ([]string, error) {
	return fsutil.Glob(l.FS, dir, l.pattern())
}

// LoadDir parses and stacks every non-empty record file in dir.
func (l *Loader) LoadDir(dir string) (Table, error) {
	files, err := l.Files(dir)
	if err != nil {
		return Table{}, fmt.Errorf("list records in %s: %w", dir, err)
	}

	tables := make([]Table, 0, len(files))
	for _, path := range files {
		info, err := l.FS.Stat(path)
		if err != nil {
			return Table{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() == 0 {
			tracef("skip empty file %s", path)
			continue
		}

		t, err := l.loadFile(path)
		if err != nil {
			return Table{}, err
		}
		tracef("loaded %s: %d records, %d columns", path, t.Len(), t.Columns)
		tables = append(tables, t)
	}

	merged, err := MergeTables(tables...)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) && fe.Path == "" {
			fe.Path = dir
		}
		return Table{}, err
	}
	return merged, nil
}

func (l *Loader) loadFile(path string) (Table, error) {
	f, err := l.FS.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ParseRecords(f)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return Table{}, err
	}
	return t, nil
}

// LoadDirs loads each directory in the order given and stacks the results.
// Callers pass directories already sorted.
func (l *Loader) LoadDirs(dirs ...string) (Table, error) {
	tables := make([]Table, 0, len(dirs))
	for _, dir := range dirs {
		t, err := l.LoadDir(dir)
		if err != nil {
			return Table{}, err
		}
		if len(dirs) > 1 {
			diagf("loaded %d records from %s", t.Len(), dir)
		}
		tables = append(tables, t)
	}
	return MergeTables(tables...)
}
