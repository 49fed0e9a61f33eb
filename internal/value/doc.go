// Package value provides the state value model for reim stores.
//
// This package contains the value union, structural comparison, the
// copy-on-write Draft and the canonical serializer. It imports nothing
// internal; every other package builds on it.
//
// Key design constraints:
//   - Value is sealed: Null, String, Int, Float, Bool, Array, Object
//   - A nil Value means "undefined" (absent), distinct from Null
//   - Only Object is structured state; everything else is scalar
//   - Values are immutable once committed to a store. Writers go through
//     a Draft, which shares every untouched subtree with its base.
package value
