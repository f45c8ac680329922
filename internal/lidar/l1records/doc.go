// Package l1records owns Layer 1 (Records) of the tiling pipeline.
//
// Responsibilities: parsing the simulator's whitespace-delimited return
// record files, validating their shape, and stacking them into one
// immutable Table per processing unit.
// Key types: Record, Table, Loader, FormatError, EmptyInputError.
//
// Dependency rule: L1 depends only on fsutil. Positional column indices
// never leave this package; everything above works with named fields.
package l1records
