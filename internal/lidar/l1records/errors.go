package l1records

import (
	"fmt"
	"strings"
)

// FormatError reports a record file that cannot be turned into a valid
// table. It is fatal for the unit being loaded.
type FormatError struct {
	Path    string
	Line    int // 1-based; zero when the problem is not tied to one line
	Columns int
	Reason  string
	Err     error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("record format error")
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// EmptyInputError reports a unit with no non-empty record files. Callers
// skip the unit and carry on.
type EmptyInputError struct {
	Dirs []string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no records found in %s", strings.Join(e.Dirs, ", "))
}
