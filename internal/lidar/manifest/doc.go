// Package manifest records tiling runs in a SQLite database: one row per
// run, per unit and per written tile, including the SHA-256 of every tile
// file so that re-runs over the same input can be compared byte for byte.
package manifest
