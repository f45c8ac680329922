package layout

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/canopy.tiles/internal/fsutil"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/pipeline"
	"github.com/banshee-data/canopy.tiles/internal/security"
)

// MergedUnitName names the unit built from every timestamp under the root.
const MergedUnitName = "merged_timestamps"

// Kind is the detected shape of an input root.
type Kind string

const (
	KindSingle     Kind = "single"
	KindTimestamps Kind = "timestamps"
	KindScenes     Kind = "scenes"
)

// PathError reports an input root that is missing or not a directory. It
// stops the whole run.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("input root %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Unit is one planned processing unit.
type Unit struct {
	pipeline.Unit

	Layout Kind

	// Scene is the scene directory name for KindScenes units.
	Scene string
}

// Plan is the ordered list of units for one input root.
type Plan struct {
	Root   string
	Layout Kind
	Units  []Unit
}

// Detect classifies root and plans its units. Only the record file pattern
// is consulted, never directory naming conventions.
func Detect(fsys fsutil.FileSystem, root, pattern string, mergeAll bool) (*Plan, error) {
	if pattern == "" {
		pattern = l1records.DefaultPattern
	}

	info, err := fsys.Stat(root)
	if err != nil {
		return nil, &PathError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &PathError{Path: root, Err: fmt.Errorf("not a directory")}
	}

	d := detector{fsys: fsys, pattern: pattern, mergeAll: mergeAll}
	plan := &Plan{Root: root}

	hasFiles, err := d.hasRecords(root)
	if err != nil {
		return nil, err
	}
	subs, err := fsutil.SubDirs(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	switch {
	case hasFiles || len(subs) == 0:
		plan.Layout = KindSingle
		plan.Units = []Unit{{
			Unit:   pipeline.Unit{Name: unitName(root), Sources: []string{root}},
			Layout: KindSingle,
		}}

	default:
		withFiles, err := d.anyHasRecords(subs)
		if err != nil {
			return nil, err
		}
		if withFiles {
			plan.Layout = KindTimestamps
			plan.Units = []Unit{d.timestampUnit(subs)}
			break
		}

		plan.Layout = KindScenes
		for _, scene := range subs {
			u, err := d.sceneUnit(scene)
			if err != nil {
				return nil, err
			}
			plan.Units = append(plan.Units, u)
		}
		disambiguate(plan.Units, subs)
	}

	diagf("%s: %s layout, %d unit(s)", root, plan.Layout, len(plan.Units))
	return plan, nil
}

type detector struct {
	fsys     fsutil.FileSystem
	pattern  string
	mergeAll bool
}

func (d detector) hasRecords(dir string) (bool, error) {
	files, err := fsutil.Glob(d.fsys, dir, d.pattern)
	if err != nil {
		return false, fmt.Errorf("list records in %s: %w", dir, err)
	}
	return len(files) > 0, nil
}

func (d detector) anyHasRecords(dirs []string) (bool, error) {
	for _, dir := range dirs {
		ok, err := d.hasRecords(dir)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// timestampUnit merges every timestamp directory or keeps the last one.
// subs is sorted.
func (d detector) timestampUnit(subs []string) Unit {
	if d.mergeAll {
		return Unit{
			Unit:   pipeline.Unit{Name: MergedUnitName, Sources: subs},
			Layout: KindTimestamps,
		}
	}
	latest := subs[len(subs)-1]
	return Unit{
		Unit:   pipeline.Unit{Name: unitName(latest), Sources: []string{latest}},
		Layout: KindTimestamps,
	}
}

// sceneUnit resolves one scene directory one level down. Record files
// directly in a scene would have made the root a timestamps layout, so
// only its subdirectories are considered.
func (d detector) sceneUnit(scene string) (Unit, error) {
	name := unitName(scene)
	u := Unit{Unit: pipeline.Unit{Name: name}, Layout: KindScenes, Scene: name}

	timestamps, err := fsutil.SubDirs(d.fsys, scene)
	if err != nil {
		return Unit{}, fmt.Errorf("list %s: %w", scene, err)
	}

	switch {
	case len(timestamps) == 0:
		u.Sources = []string{scene}
	case d.mergeAll:
		u.Sources = timestamps
	default:
		u.Sources = []string{timestamps[len(timestamps)-1]}
	}
	return u, nil
}

// unitName derives a file-name-safe unit name from a directory path.
func unitName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) {
		if abs, err := filepath.Abs(dir); err == nil {
			base = filepath.Base(abs)
		}
	}
	return security.SanitizeFilename(base)
}

// disambiguate renames scene units whose sanitised names collide, so every
// unit keeps its own output directory. A scene whose directory name is
// already safe keeps it; the others get the smallest free "_N" suffix
// (N >= 2) in scene order.
func disambiguate(units []Unit, scenes []string) {
	taken := make(map[string]bool, len(units))
	for _, u := range units {
		taken[u.Name] = true
	}
	owner := make(map[string]int, len(units))
	for i, u := range units {
		if _, ok := owner[u.Name]; !ok || filepath.Base(scenes[i]) == u.Name {
			owner[u.Name] = i
		}
	}
	for i := range units {
		u := &units[i]
		if owner[u.Name] == i {
			continue
		}
		name := u.Name
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s_%d", name, n)
			if !taken[candidate] {
				name = candidate
				break
			}
		}
		taken[name] = true
		opsf("scene %s: unit name %s already used, writing to %s", scenes[i], u.Name, name)
		u.Name = name
		u.Scene = name
	}
}
