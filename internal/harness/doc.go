// Package harness runs store scenarios written in YAML and compares
// their notification traces against golden files.
//
// # Scenario Format
//
//	name: cart_checkout
//	description: "What this scenario validates"
//	store:
//	  name: cart               # optional registry name
//	  reentrancy: queue        # queue | recurse
//	  isolate_handlers: false
//	initial: {items: [], total: 0}
//	# or: initial_file: cart.cue, initial_path: stores.cart
//	actions:
//	  add:
//	    set: {last: $0}        # $N is the Nth dispatch argument
//	    add: {total: $1}
//	  close:
//	    merge: {open: false}   # a plain patch
//	  checkout:
//	    set: {status: pending}
//	    thunk:                 # returned by the first stage
//	      replace: {status: done}
//	subscribers:
//	  - name: total
//	    key: total             # or path: a.b, or select: {out: a.b}
//	    immediate: true
//	    react: {when: 10, dispatch: close}
//	steps:
//	  - dispatch: add
//	    args: [apple, 4]
//	  - set: {open: true}
//	  - replace: 0
//	  - reset: true
//	    value: {total: 1}
//	  - jump: {total: 3}       # debugger JUMP_TO_STATE
//	  - jump_to: 2             # debugger JUMP_TO_ACTION by seq
//	  - unsubscribe: total
//	assertions:
//	  - type: final_state
//	    expect: {total: 4}
//	  - type: notify_count
//	    subscriber: total
//	    count: 2
//	  - type: view
//	    subscriber: total
//	    expect: 4
//	  - type: actions
//	    expect: [add, set]
//	  - type: devtools_frames
//	    count: 3
//	  - type: stringify
//	    expect: '{"0":{"total":4}}'
//
// # Action Definitions
//
// An action with only merge is a plain patch and one with only replace is
// a plain value. Any draft operation (set, add, delete) or a thunk turns
// it into a draft mutator; thunk is the mutator's return value, so a
// thunk holding draft operations runs as the second stage. Actions that
// reference $N are bound as action thunks receiving the dispatch
// arguments. The key "." in set and add addresses the whole state, which
// is how scalar stores are updated.
//
// # Determinism
//
// Every run uses a fresh registry, an in-memory journal, an in-memory
// debugger pipe, a logical clock starting at 1 and fixed instance IDs, so
// traces are byte-identical across runs.
package harness
