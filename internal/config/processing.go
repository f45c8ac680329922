package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
	"github.com/banshee-data/canopy.tiles/internal/lidar/l4export"
	"github.com/banshee-data/canopy.tiles/internal/lidar/semantics"
)

// Defaults applied by the Get* accessors.
const (
	DefaultOutputRoot = "output"
	DefaultTileSize   = 50.0
	DefaultFormat     = l4export.FormatPLY
	DefaultWorkers    = 1
)

// maxFileSize caps configuration files at 1MB.
const maxFileSize = 1 * 1024 * 1024

// ErrNoInputRoot is returned by ValidateForRun when no input root is set.
var ErrNoInputRoot = errors.New("no input root specified")

// ProcessingConfig holds the settings of one tiling run. Every field is
// optional; the Get* accessors supply defaults for nil fields so that
// partial files are safe. The same keys are accepted from JSON and YAML.
type ProcessingConfig struct {
	InputRoot  *string  `json:"input_root,omitempty" yaml:"input_root,omitempty"`
	OutputRoot *string  `json:"output_root,omitempty" yaml:"output_root,omitempty"`
	TileSize   *float64 `json:"tile_size,omitempty" yaml:"tile_size,omitempty"`
	MergeAllTS *bool    `json:"merge_all_ts,omitempty" yaml:"merge_all_ts,omitempty"`

	// Semantic labels
	GroundLabel *int  `json:"ground_label,omitempty" yaml:"ground_label,omitempty"`
	WoodLabel   *int  `json:"wood_label,omitempty" yaml:"wood_label,omitempty"`
	LeafLabel   *int  `json:"leaf_label,omitempty" yaml:"leaf_label,omitempty"`
	LeafWood    *bool `json:"leafwood,omitempty" yaml:"leafwood,omitempty"`

	// Output and execution
	Format  *string `json:"format,omitempty" yaml:"format,omitempty"`
	Pattern *string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Workers *int    `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Optional run manifest database and per-unit diagnostic report
	ManifestDB *string `json:"manifest_db,omitempty" yaml:"manifest_db,omitempty"`
	Report     *bool   `json:"report,omitempty" yaml:"report,omitempty"`
}

// document is the shape of a full configuration file, where the tiling
// settings live under a postprocess section next to unrelated sections.
type document struct {
	Postprocess *ProcessingConfig `json:"postprocess" yaml:"postprocess"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyProcessingConfig returns a ProcessingConfig with all fields nil.
func EmptyProcessingConfig() *ProcessingConfig {
	return &ProcessingConfig{}
}

// LoadProcessingConfig loads a ProcessingConfig from a .json, .yaml or
// .yml file of at most 1MB. Settings may sit at the top level or under a
// postprocess section; the section wins when present.
func LoadProcessingConfig(path string) (*ProcessingConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	var unmarshal func([]byte, any) error
	switch ext {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return EmptyProcessingConfig(), nil
	}

	var doc document
	if err := unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}
	cfg := doc.Postprocess
	if cfg == nil {
		cfg = EmptyProcessingConfig()
		if err := unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that are set.
func (c *ProcessingConfig) Validate() error {
	if c.TileSize != nil {
		if v := *c.TileSize; math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("tile_size must be a positive finite number, got %v", v)
		}
	}
	labels := []struct {
		name string
		v    *int
	}{{"ground_label", c.GroundLabel}, {"wood_label", c.WoodLabel}, {"leaf_label", c.LeafLabel}}
	for _, l := range labels {
		if l.v != nil && *l.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", l.name, *l.v)
		}
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if c.Format != nil && !slices.Contains(l4export.Formats(), *c.Format) {
		return fmt.Errorf("unknown format %q (want one of %v)", *c.Format, l4export.Formats())
	}
	if c.Pattern != nil {
		if *c.Pattern == "" {
			return errors.New("pattern must not be empty")
		}
		if _, err := filepath.Match(*c.Pattern, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", *c.Pattern, err)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// ValidateForRun validates c and requires an input root.
func (c *ProcessingConfig) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.GetInputRoot() == "" {
		return ErrNoInputRoot
	}
	return nil
}

// Policy returns the label policy described by c.
func (c *ProcessingConfig) Policy() semantics.Policy {
	return semantics.Policy{
		Ground:   c.GetGroundLabel(),
		Wood:     c.GetWoodLabel(),
		Leaf:     c.GetLeafLabel(),
		LeafWood: c.GetLeafWood(),
	}
}

// GetInputRoot returns the input root, or "" when unset.
func (c *ProcessingConfig) GetInputRoot() string {
	if c.InputRoot == nil {
		return ""
	}
	return *c.InputRoot
}

// GetOutputRoot returns the output root or the default.
func (c *ProcessingConfig) GetOutputRoot() string {
	if c.OutputRoot == nil || *c.OutputRoot == "" {
		return DefaultOutputRoot
	}
	return *c.OutputRoot
}

// GetTileSize returns the tile edge length in metres or the default.
func (c *ProcessingConfig) GetTileSize() float64 {
	if c.TileSize == nil {
		return DefaultTileSize
	}
	return *c.TileSize
}

// GetMergeAllTS returns merge_all_ts or the default (false).
func (c *ProcessingConfig) GetMergeAllTS() bool {
	if c.MergeAllTS == nil {
		return false
	}
	return *c.MergeAllTS
}

// GetGroundLabel returns the ground class label or the default.
func (c *ProcessingConfig) GetGroundLabel() int {
	if c.GroundLabel == nil {
		return semantics.DefaultGroundLabel
	}
	return *c.GroundLabel
}

// GetWoodLabel returns the wood class label or the default.
func (c *ProcessingConfig) GetWoodLabel() int {
	if c.WoodLabel == nil {
		return semantics.DefaultWoodLabel
	}
	return *c.WoodLabel
}

// GetLeafLabel returns the leaf class label or the default.
func (c *ProcessingConfig) GetLeafLabel() int {
	if c.LeafLabel == nil {
		return semantics.DefaultLeafLabel
	}
	return *c.LeafLabel
}

// GetLeafWood returns leafwood or the default (false).
func (c *ProcessingConfig) GetLeafWood() bool {
	if c.LeafWood == nil {
		return false
	}
	return *c.LeafWood
}

// GetFormat returns the output format or the default.
func (c *ProcessingConfig) GetFormat() string {
	if c.Format == nil || *c.Format == "" {
		return DefaultFormat
	}
	return *c.Format
}

// GetPattern returns the record file glob or the default.
func (c *ProcessingConfig) GetPattern() string {
	if c.Pattern == nil || *c.Pattern == "" {
		return l1records.DefaultPattern
	}
	return *c.Pattern
}

// GetWorkers returns the unit concurrency or the default.
func (c *ProcessingConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetManifestDB returns the manifest database path, or "" when disabled.
func (c *ProcessingConfig) GetManifestDB() string {
	if c.ManifestDB == nil {
		return ""
	}
	return *c.ManifestDB
}

// GetReport reports whether per-unit diagnostics are written.
func (c *ProcessingConfig) GetReport() bool {
	if c.Report == nil {
		return false
	}
	return *c.Report
}

// Overrides carries values given on the command line. Nil fields leave the
// file value in place.
type Overrides struct {
	InputRoot   *string
	OutputRoot  *string
	TileSize    *float64
	MergeAllTS  *bool
	GroundLabel *int
	WoodLabel   *int
	LeafLabel   *int
	LeafWood    *bool
	Format      *string
	Workers     *int
	ManifestDB  *string
	Report      *bool
}

// Apply copies every set override into c.
func (o Overrides) Apply(c *ProcessingConfig) {
	set := func(dst **string, v *string) {
		if v != nil {
			*dst = ptrString(*v)
		}
	}
	setInt := func(dst **int, v *int) {
		if v != nil {
			*dst = ptrInt(*v)
		}
	}
	setBool := func(dst **bool, v *bool) {
		if v != nil {
			*dst = ptrBool(*v)
		}
	}
	set(&c.InputRoot, o.InputRoot)
	set(&c.OutputRoot, o.OutputRoot)
	if o.TileSize != nil {
		c.TileSize = ptrFloat64(*o.TileSize)
	}
	setBool(&c.MergeAllTS, o.MergeAllTS)
	setInt(&c.GroundLabel, o.GroundLabel)
	setInt(&c.WoodLabel, o.WoodLabel)
	setInt(&c.LeafLabel, o.LeafLabel)
	setBool(&c.LeafWood, o.LeafWood)
	set(&c.Format, o.Format)
	setInt(&c.Workers, o.Workers)
	set(&c.ManifestDB, o.ManifestDB)
	setBool(&c.Report, o.Report)
}
