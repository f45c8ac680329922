// Package semantics holds the label policy shared by the tiling layers:
// which simulator classes are ground, which are vegetation, and how class
// and instance ids are rewritten into the semantic_seg and treeID fields of
// an annotated tile.
package semantics
