package l4export

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/banshee-data/canopy.tiles/internal/fsutil"
)

// TileFileName returns "{unit}_plot_{seq}_annotated.{ext}".
func TileFileName(unit string, seq int, ext string) string {
	return fmt.Sprintf("%s_plot_%d_annotated.%s", unit, seq, ext)
}

// Written describes one tile file on disk.
type Written struct {
	Path   string
	Points int
	Bytes  int64
	SHA256 string
}

// TileWriter encodes tiles and places them under a unit directory.
type TileWriter struct {
	FS      fsutil.FileSystem
	Encoder Encoder
}

// NewTileWriter returns a writer for the named format.
func NewTileWriter(fsys fsutil.FileSystem, format string) (*TileWriter, error) {
	enc, err := NewEncoder(format)
	if err != nil {
		return nil, err
	}
	return &TileWriter{FS: fsys, Encoder: enc}, nil
}

// WriteTile encodes points and writes them to dir as tile seq of unit. The
// file appears under its final name only once it is complete. A tile with
// no points writes nothing and returns nil.
func (w *TileWriter) WriteTile(dir, unit string, seq int, points []Point) (*Written, error) {
	if len(points) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	sum := sha256.New()
	if err := w.Encoder.Encode(io.MultiWriter(&buf, sum), points); err != nil {
		return nil, fmt.Errorf("encode tile %d of %s: %w", seq, unit, err)
	}

	if err := w.FS.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	final := filepath.Join(dir, TileFileName(unit, seq, w.Encoder.Ext()))
	tmp := final + ".tmp"
	if err := w.FS.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return nil, multierr.Combine(
			fmt.Errorf("write %s: %w", tmp, err),
			ignoreMissing(w.FS.Remove(tmp)),
		)
	}
	if err := w.FS.Rename(tmp, final); err != nil {
		return nil, multierr.Combine(
			fmt.Errorf("rename %s: %w", final, err),
			ignoreMissing(w.FS.Remove(tmp)),
		)
	}

	tracef("wrote %s (%d points, %d bytes)", final, len(points), buf.Len())
	return &Written{
		Path:   final,
		Points: len(points),
		Bytes:  int64(buf.Len()),
		SHA256: hex.EncodeToString(sum.Sum(nil)),
	}, nil
}

func ignoreMissing(err error) error {
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
