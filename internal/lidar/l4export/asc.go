package l4export

import (
	"bufio"
	"fmt"
	"io"
)

// ASCEncoder writes CloudCompare-compatible ASC text.
type ASCEncoder struct{}

func (ASCEncoder) Ext() string { return "asc" }

func (ASCEncoder) Encode(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Exported points\n")
	fmt.Fprintf(bw, "# Format: X Y Z Intensity SemanticSeg TreeID\n")

	for _, p := range points {
		fmt.Fprintf(bw, "%.6f %.6f %.6f %.6f %d %d\n",
			p.X, p.Y, p.Z, p.Intensity, int(p.SemanticSeg), int(p.TreeID))
	}
	return bw.Flush()
}
