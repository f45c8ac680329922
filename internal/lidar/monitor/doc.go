// Package monitor renders per-unit diagnostics after tiling: a PNG map of
// the selected points coloured by tile with tree centroids overlaid, and an
// HTML bar chart of points per tile split into ground and vegetation.
package monitor
