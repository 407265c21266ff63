// Package record provides the row model shared by every gridsync package.
//
// This package contains value types only. All other internal packages
// import record; record imports nothing internal.
//
// Key design constraints:
//   - Cells are scalars: Null, String, Int, Float, Bool
//   - Int and Float compare numerically so widget round-trips are not edits
//   - Positions address rows only within one snapshot generation
//   - Canonical JSON is the only encoding used for hashing and golden traces
package record
