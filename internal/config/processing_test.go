package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestEmptyProcessingConfig_Defaults(t *testing.T) {
	cfg := EmptyProcessingConfig()

	if cfg.GetInputRoot() != "" {
		t.Errorf("GetInputRoot() = %q, want empty", cfg.GetInputRoot())
	}
	if cfg.GetOutputRoot() != "output" {
		t.Errorf("GetOutputRoot() = %q, want output", cfg.GetOutputRoot())
	}
	if cfg.GetTileSize() != 50.0 {
		t.Errorf("GetTileSize() = %f, want 50", cfg.GetTileSize())
	}
	if cfg.GetMergeAllTS() {
		t.Error("GetMergeAllTS() = true, want false")
	}
	if got := cfg.Policy(); got != semantics.DefaultPolicy() {
		t.Errorf("Policy() = %v, want %v", got, semantics.DefaultPolicy())
	}
	if cfg.GetFormat() != "ply" {
		t.Errorf("GetFormat() = %q, want ply", cfg.GetFormat())
	}
	if cfg.GetPattern() != "leg*_points.xyz" {
		t.Errorf("GetPattern() = %q", cfg.GetPattern())
	}
	if cfg.GetWorkers() != 1 {
		t.Errorf("GetWorkers() = %d, want 1", cfg.GetWorkers())
	}
	if cfg.GetManifestDB() != "" || cfg.GetReport() {
		t.Error("manifest and report should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on empty config: %v", err)
	}
	if err := cfg.ValidateForRun(); !errors.Is(err, ErrNoInputRoot) {
		t.Errorf("ValidateForRun() = %v, want ErrNoInputRoot", err)
	}
}

func TestLoadProcessingConfig_YAMLPostprocessSection(t *testing.T) {
	path := writeConfig(t, "camp.yaml", `
blender:
  bin: blender

postprocess:
  input_root: ./test_input
  output_root: ./test_output
  tile_size: 25.0
  merge_all_ts: true
  ground_label: 1
  wood_label: 5
  leaf_label: 6
  leafwood: true

planning:
  spacing: 20.0
`)

	cfg, err := LoadProcessingConfig(path)
	if err != nil {
		t.Fatalf("LoadProcessingConfig failed: %v", err)
	}

	if cfg.GetInputRoot() != "./test_input" || cfg.GetOutputRoot() != "./test_output" {
		t.Errorf("roots = %q, %q", cfg.GetInputRoot(), cfg.GetOutputRoot())
	}
	if cfg.GetTileSize() != 25.0 {
		t.Errorf("GetTileSize() = %f, want 25", cfg.GetTileSize())
	}
	if !cfg.GetMergeAllTS() {
		t.Error("GetMergeAllTS() = false, want true")
	}
	want := semantics.Policy{Ground: 1, Wood: 5, Leaf: 6, LeafWood: true}
	if got := cfg.Policy(); got != want {
		t.Errorf("Policy() = %v, want %v", got, want)
	}
	if err := cfg.ValidateForRun(); err != nil {
		t.Errorf("ValidateForRun() = %v", err)
	}
}

func TestLoadProcessingConfig_FlatJSON(t *testing.T) {
	path := writeConfig(t, "run.json", `{
  "input_root": "/data/helios",
  "tile_size": 10,
  "format": "las",
  "workers": 4,
  "manifest_db": "/data/manifest.db",
  "report": true
}`)

	cfg, err := LoadProcessingConfig(path)
	if err != nil {
		t.Fatalf("LoadProcessingConfig failed: %v", err)
	}
	if cfg.GetTileSize() != 10 || cfg.GetFormat() != "las" || cfg.GetWorkers() != 4 {
		t.Errorf("got tile=%f format=%q workers=%d", cfg.GetTileSize(), cfg.GetFormat(), cfg.GetWorkers())
	}
	if cfg.GetManifestDB() != "/data/manifest.db" || !cfg.GetReport() {
		t.Errorf("manifest=%q report=%v", cfg.GetManifestDB(), cfg.GetReport())
	}
	// Omitted fields keep their defaults.
	if cfg.GetGroundLabel() != 2 || cfg.GetLeafWood() {
		t.Errorf("ground=%d leafwood=%v", cfg.GetGroundLabel(), cfg.GetLeafWood())
	}
}

func TestLoadProcessingConfig_NestedJSONAndEmptyFile(t *testing.T) {
	path := writeConfig(t, "nested.json", `{"postprocess": {"tile_size": 30}, "scene": {"name": "x"}}`)
	cfg, err := LoadProcessingConfig(path)
	if err != nil {
		t.Fatalf("LoadProcessingConfig failed: %v", err)
	}
	if cfg.GetTileSize() != 30 {
		t.Errorf("GetTileSize() = %f, want 30", cfg.GetTileSize())
	}

	empty := writeConfig(t, "empty.yml", "\n")
	cfg, err = LoadProcessingConfig(empty)
	if err != nil {
		t.Fatalf("LoadProcessingConfig(empty) failed: %v", err)
	}
	if cfg.GetTileSize() != 50 {
		t.Errorf("empty file should use defaults, got tile=%f", cfg.GetTileSize())
	}
}

func TestLoadProcessingConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "cfg.toml", "tile_size = 1", "extension"},
		{"syntax", "bad.json", "{", "failed to parse"},
		{"zero tile", "zero.yaml", "tile_size: 0", "tile_size"},
		{"negative label", "neg.yaml", "wood_label: -1", "wood_label"},
		{"label collision", "clash.yaml", "ground_label: 3", "must differ"},
		{"leaf collision", "leaf.yaml", "ground_label: 4\nleafwood: true", "leaf label"},
		{"format", "fmt.yaml", "format: e57", "unknown format"},
		{"pattern", "pat.yaml", "pattern: '[x'", "invalid pattern"},
		{"workers", "w.yaml", "workers: 0", "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadProcessingConfig(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProcessingConfig_MissingAndOversized(t *testing.T) {
	if _, err := LoadProcessingConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	big := strings.Repeat("#", maxFileSize+1)
	path := writeConfig(t, "big.yaml", big)
	_, err := LoadProcessingConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestOverrides_Apply(t *testing.T) {
	cfg := &ProcessingConfig{TileSize: ptrFloat64(25), Format: ptrString("asc")}

	Overrides{
		InputRoot: ptrString("/in"),
		TileSize:  ptrFloat64(10),
		LeafWood:  ptrBool(true),
		Workers:   ptrInt(3),
	}.Apply(cfg)

	if cfg.GetInputRoot() != "/in" || cfg.GetTileSize() != 10 || !cfg.GetLeafWood() || cfg.GetWorkers() != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.GetFormat() != "asc" {
		t.Errorf("unset override replaced format: %q", cfg.GetFormat())
	}
}
