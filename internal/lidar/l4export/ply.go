package l4export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// PLYEncoder writes Stanford PLY with one float property per field.
type PLYEncoder struct {
	// ASCII selects the text body instead of binary little endian.
	ASCII bool
}

func (PLYEncoder) Ext() string { return "ply" }

func (e PLYEncoder) Encode(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)

	format := "binary_little_endian"
	if e.ASCII {
		format = "ascii"
	}
	fmt.Fprintf(bw, "ply\nformat %s 1.0\nelement vertex %d\n", format, len(points))
	for _, name := range FieldNames {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	bw.WriteString("end_header\n")

	if e.ASCII {
		for _, p := range points {
			vals := [...]float32{p.X, p.Y, p.Z, p.Intensity, p.SemanticSeg, p.TreeID}
			for i, v := range vals {
				if i > 0 {
					bw.WriteByte(' ')
				}
				bw.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
			}
			bw.WriteByte('\n')
		}
		return bw.Flush()
	}

	var rec [24]byte
	for _, p := range points {
		binary.LittleEndian.PutUint32(rec[0:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(rec[4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(rec[8:], math.Float32bits(p.Z))
		binary.LittleEndian.PutUint32(rec[12:], math.Float32bits(p.Intensity))
		binary.LittleEndian.PutUint32(rec[16:], math.Float32bits(p.SemanticSeg))
		binary.LittleEndian.PutUint32(rec[20:], math.Float32bits(p.TreeID))
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
