// Package l4export owns Layer 4 (Export) of the tiling pipeline.
//
// Responsibilities: turning selected records into annotated points and
// serialising each tile as one point-cloud file. Binary PLY is the default
// format; ASCII PLY, CloudCompare ASC and LAS 1.2 are also supported.
// Every file carries x, y, z, intensity, semantic_seg and treeID.
//
// Tile files are written once, in full, through a temporary file that is
// renamed into place, so an interrupted run never leaves a truncated tile.
//
// Dependency rule: L4 may depend on L1-L3 and semantics.
package l4export
