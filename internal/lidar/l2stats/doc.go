// Package l2stats owns Layer 2 (Statistics) of the tiling pipeline.
//
// Responsibilities: planar extents, vegetation-instance counts, stem and
// point densities, and a height summary for one merged table. The results
// are diagnostic only; the tile grid consumes nothing but the Bounds.
//
// Dependency rule: L2 may depend on L1 and semantics, never on L3+.
package l2stats
