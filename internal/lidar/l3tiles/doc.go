// Package l3tiles owns Layer 3 (Tiles) of the tiling pipeline.
//
// Responsibilities: sizing the uniform planar grid from a unit's bounds,
// assigning each vegetation instance to exactly one cell by its centroid,
// and selecting the points that belong to each cell.
// Key types: Grid, Assignment, Tile.
//
// Vegetation points follow their instance, so a tree whose canopy
// straddles a cell edge is never split. Ground points are binned purely by
// position, with the last row and column closed on the upper side so that
// points on the global maximum are kept.
//
// Dependency rule: L3 may depend on L1-L2 and semantics, but never on L4+.
// No file I/O is allowed in this package.
package l3tiles
