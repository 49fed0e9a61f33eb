package store

// pendingUpdate is an update issued while subscribers were being
// notified.
type pendingUpdate struct {
	action   string
	mutation Mutation
	args     []any
}

// updateQueue is a FIFO of deferred updates.
//
// Not safe for concurrent use: it is owned by the goroutine driving the
// store, like the store itself.
type updateQueue struct {
	items []pendingUpdate
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{items: make([]pendingUpdate, 0, 8)}
}

func (q *updateQueue) push(u pendingUpdate) {
	q.items = append(q.items, u)
}

// pop removes and returns the front update.
func (q *updateQueue) pop() (pendingUpdate, bool) {
	if len(q.items) == 0 {
		return pendingUpdate{}, false
	}

	u := q.items[0]

	// Nil out the slot so the backing array does not retain the
	// mutation closures and arguments.
	q.items[0] = pendingUpdate{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return u, true
}

func (q *updateQueue) len() int {
	return len(q.items)
}

// clear drops every pending update and returns how many were dropped.
func (q *updateQueue) clear() int {
	n := len(q.items)
	clear(q.items)
	q.items = q.items[:0]
	return n
}
