// Package value provides the tagged-union value tree that backs a simulation
// log document.
//
// A document is a value.Object whose leaves are String, Int, Float, Bool, Null
// or Array values. Every other internal package imports value; value imports
// nothing internal.
//
// Key design constraints:
//   - Int and Float stay distinct across a JSON round trip (2 and 2.0 differ)
//   - Object iteration for output always goes through SortedKeys
//   - A present JSON null is Null{}, never a Go nil
package value
