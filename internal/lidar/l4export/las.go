package l4export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/edaniels/lidario"
	"go.uber.org/multierr"
)

// TreeIDVLRDescription tags the variable length records that carry one
// little-endian int32 tree id per point. A VLR holds at most
// treeIDsPerVLR ids, so larger tiles spread them over several records
// numbered from 0 in RecordID, in point order.
const TreeIDVLRDescription = "canopy|treeID"

const lasUserID = "canopy.tiles"

// A VLR length is a uint16.
const (
	maxVLRPayload = math.MaxUint16
	treeIDsPerVLR = maxVLRPayload / 4
)

// LASEncoder writes LAS 1.2 point format 0. semantic_seg is stored as the
// point classification; tree ids go into a VLR since format 0 has no field
// for them.
type LASEncoder struct{}

func (LASEncoder) Ext() string { return "las" }

func (LASEncoder) Encode(w io.Writer, points []Point) (err error) {
	// lidario only writes to named files.
	dir, err := os.MkdirTemp("", "canopy-las-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "tile.las")
	if err := writeLAS(fn, points); err != nil {
		return err
	}

	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	_, err = io.Copy(w, f)
	return err
}

func writeLAS(fn string, points []Point) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: byte(0),
	}); err != nil {
		return err
	}

	var ids bytes.Buffer
	for _, p := range points {
		pr0 := &lidario.PointRecord0{
			X:         float64(p.X),
			Y:         float64(p.Y),
			Z:         float64(p.Z),
			Intensity: lasIntensity(p.Intensity),
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: lasClass(p.SemanticSeg),
			},
			PointSourceID: 1,
		}
		if err = lf.AddLasPoint(pr0); err != nil {
			return err
		}

		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(int32(p.TreeID)))
		ids.Write(b[:])
	}

	for i, chunk := range treeIDChunks(ids.Bytes()) {
		if err = lf.AddVLR(lidario.VLR{
			UserID:                  lasUserID,
			RecordID:                i,
			Description:             TreeIDVLRDescription,
			BinaryData:              chunk,
			RecordLengthAfterHeader: len(chunk),
		}); err != nil {
			return err
		}
	}
	return nil
}

// treeIDChunks splits the packed ids into VLR-sized payloads. No ids still
// yields one empty record so readers can tell the tile carries tree ids.
func treeIDChunks(data []byte) [][]byte {
	const size = treeIDsPerVLR * 4
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	return append(out, data)
}

// treeIDsFromVLRs reassembles the per-point tree ids written by
// LASEncoder, ordering the records by RecordID.
func treeIDsFromVLRs(vlrs []lidario.VLR) ([]int32, error) {
	var parts []lidario.VLR
	for _, v := range vlrs {
		if v.Description == TreeIDVLRDescription {
			parts = append(parts, v)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].RecordID < parts[j].RecordID })

	var ids []int32
	for i, v := range parts {
		if v.RecordID != i {
			return nil, fmt.Errorf("tree id record %d missing", i)
		}
		if len(v.BinaryData)%4 != 0 {
			return nil, fmt.Errorf("tree id record %d: %d bytes is not a multiple of 4", i, len(v.BinaryData))
		}
		for off := 0; off < len(v.BinaryData); off += 4 {
			ids = append(ids, int32(binary.LittleEndian.Uint32(v.BinaryData[off:])))
		}
	}
	return ids, nil
}

func lasIntensity(v float32) uint16 {
	return uint16(math.Round(min(max(float64(v), 0), math.MaxUint16)))
}

// lasClass keeps the five classification bits of format 0.
func lasClass(seg float32) byte {
	return byte(min(max(int(seg), 0), 31))
}
