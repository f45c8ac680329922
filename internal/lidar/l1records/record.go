package l1records

// Input column layout. Columns 4 through 7 are carried but unused.
const (
	colX         = 0
	colY         = 1
	colZ         = 2
	colIntensity = 3
	colAux       = 4
	colInstance  = 8
	colClass     = 9

	// MinColumns is the narrowest record the pipeline accepts.
	MinColumns = 10
)

// Record is one simulated laser return.
type Record struct {
	X, Y, Z   float64
	Intensity float64

	// Aux holds input columns 4..7 verbatim.
	Aux [4]float64

	// InstanceID identifies the physical object hit (a tree, the ground
	// plane). Integer-valued in the input; fractional parts are truncated.
	InstanceID int64

	// ClassID is the semantic class of the object hit.
	ClassID int
}

func recordFromRow(row []float64) Record {
	r := Record{
		X:          row[colX],
		Y:          row[colY],
		Z:          row[colZ],
		Intensity:  row[colIntensity],
		InstanceID: int64(row[colInstance]),
		ClassID:    int(row[colClass]),
	}
	copy(r.Aux[:], row[colAux:colInstance])
	return r
}

// Table is the merged point table for one unit. Treat it as read-only once
// built.
type Table struct {
	Records []Record

	// Columns is the input width shared by every source file.
	Columns int
}

// EmptyTable returns a table with no rows and the minimum column width.
func EmptyTable() Table {
	return Table{Columns: MinColumns}
}

// Len returns the number of records.
func (t Table) Len() int { return len(t.Records) }

// Empty reports whether the table has no rows.
func (t Table) Empty() bool { return len(t.Records) == 0 }

// MergeTables stacks tables row-wise in argument order, skipping empty ones.
// Tables of different widths cannot be stacked.
func MergeTables(tables ...Table) (Table, error) {
	var (
		n       int
		columns int
	)
	for _, t := range tables {
		if t.Empty() {
			continue
		}
		if columns == 0 {
			columns = t.Columns
		} else if t.Columns != columns {
			return Table{}, &FormatError{
				Columns: t.Columns,
				Reason:  "column count differs from earlier files",
			}
		}
		n += t.Len()
	}
	if n == 0 {
		return EmptyTable(), nil
	}

	out := Table{Records: make([]Record, 0, n), Columns: columns}
	for _, t := range tables {
		out.Records = append(out.Records, t.Records...)
	}
	return out, nil
}
