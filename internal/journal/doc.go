// Package journal records store transitions in an in-memory SQLite
// database.
//
// Every commit of a store wired with Hook becomes one row keyed by
// (store index, seq). The journal answers "what was the state of store i
// at seq n", which is how a debugger JUMP_TO_ACTION command without an
// attached state is resolved (see Resolver and store.WithHistory).
//
// Rows are ordered deterministically by seq; states and payloads are
// stored as canonical JSON with a content hash so that equal states are
// byte-identical in the journal.
//
// The database lives for the lifetime of the Journal: nothing is written
// to disk.
package journal
