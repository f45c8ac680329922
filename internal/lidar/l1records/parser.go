package l1records

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// maxLineBytes bounds a single record line.
const maxLineBytes = 1 << 20

// ParseRecords reads whitespace-delimited float rows from r. Blank lines and
// lines starting with '#' are skipped. Every row must have the width of the
// first one, and that width must be at least MinColumns. NaN and infinite
// values are rejected in the first MinColumns columns. A reader with no
// rows yields an empty table.
func ParseRecords(r io.Reader) (Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		t    Table
		row  []float64
		line int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)

		if t.Columns == 0 {
			if len(fields) < MinColumns {
				return Table{}, &FormatError{
					Line:    line,
					Columns: len(fields),
					Reason:  fmt.Sprintf("expected at least %d columns, got %d", MinColumns, len(fields)),
				}
			}
			t.Columns = len(fields)
			row = make([]float64, t.Columns)
		} else if len(fields) != t.Columns {
			return Table{}, &FormatError{
				Line:    line,
				Columns: len(fields),
				Reason:  fmt.Sprintf("expected %d columns, got %d", t.Columns, len(fields)),
			}
		}

		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Table{}, &FormatError{
					Line:    line,
					Columns: len(fields),
					Reason:  fmt.Sprintf("column %d is not a number", i),
					Err:     err,
				}
			}
			if i < MinColumns && (math.IsNaN(v) || math.IsInf(v, 0)) {
				return Table{}, &FormatError{
					Line:    line,
					Columns: len(fields),
					Reason:  fmt.Sprintf("column %d is not finite: %s", i, f),
				}
			}
			row[i] = v
		}
		t.Records = append(t.Records, recordFromRow(row))
	}
	if err := sc.Err(); err != nil {
		return Table{}, &FormatError{Line: line + 1, Reason: "read failed", Err: err}
	}

	if t.Columns == 0 {
		return EmptyTable(), nil
	}
	return t, nil
}
