package l4export

import (
	"fmt"
	"io"
	"sort"
)

// Encoder serialises a tile's points.
type Encoder interface {
	// Ext is the file extension without the leading dot.
	Ext() string
	Encode(w io.Writer, points []Point) error
}

// Format names accepted by NewEncoder.
const (
	FormatPLY      = "ply"
	FormatPLYASCII = "ply-ascii"
	FormatASC      = "asc"
	FormatLAS      = "las"
)

var encoders = map[string]func() Encoder{
	FormatPLY:      func() Encoder { return PLYEncoder{} },
	FormatPLYASCII: func() Encoder { return PLYEncoder{ASCII: true} },
	FormatASC:      func() Encoder { return ASCEncoder{} },
	FormatLAS:      func() Encoder { return LASEncoder{} },
}

// NewEncoder returns the encoder for a format name.
func NewEncoder(format string) (Encoder, error) {
	mk, ok := encoders[format]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (want one of %v)", format, Formats())
	}
	return mk(), nil
}

// Formats lists the supported format names.
func Formats() []string {
	out := make([]string, 0, len(encoders))
	for name := range encoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
