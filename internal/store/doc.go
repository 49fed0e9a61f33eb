// Package store implements the reactive state container.
//
// A Store owns one state value. Every update runs the same synchronous
// pipeline on the caller's goroutine:
//
//  1. Resolve the Mutation (bound actions called with their arguments)
//  2. Apply it: copy-on-write through a value.Draft for Object state,
//     wholesale replacement for scalar state
//  3. Commit the result to the instance registry
//  4. Run commit hooks and forward the state to the debug bridge
//  5. Notify subscribers whose filtered view changed (deep equality)
//
// Subscribers are visited in registration order. A subscriber whose
// filtered view is deep-equal to the last one it received is skipped.
//
// Updates issued from inside a notification are queued and applied after
// the current pass completes (ReentrancyQueue, the default), or applied
// immediately in a nested pass (ReentrancyRecurse).
//
// A Store is not safe for concurrent use. Stores on different goroutines
// may share a registry.
package store
