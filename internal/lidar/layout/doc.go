// Package layout decides how an input root maps onto processing units and
// drives each unit through the pipeline.
//
// Three shapes are recognised purely from where record files sit:
//
//   - single:     the root itself holds leg*_points.xyz files.
//   - timestamps: some immediate subdirectory holds them; either every
//     subdirectory is merged into one unit or only the lexicographically
//     last one is used.
//   - scenes:     neither; each subdirectory is a scene resolved one level
//     down with the same two rules and named after the scene.
//
// Units are independent and may run concurrently.
package layout
