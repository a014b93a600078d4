package db

import "sync"

// EventOp is the kind of user-visible write that occurred.
type EventOp int

const (
	// OpCreate indicates a new transaction was created.
	OpCreate EventOp = iota
	// OpUpdate indicates an existing transaction was edited.
	OpUpdate
	// OpDelete indicates a transaction was deleted.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event describes a successful user-visible write to the store.
//
// Sync bookkeeping (MarkSynced, Import) does not produce events: observers
// exist so the rest of the application can react to user mutations, and a
// completed sync is reported through the coordinator's status fan-out
// instead.
type Event struct {
	Op EventOp
	ID string
}

type observers struct {
	obsMu   sync.RWMutex
	obs     map[int]func(Event)
	nextObs int
}

// Subscribe registers a callback invoked after every successful
// Create/Update/Delete. It returns an unsubscribe function.
//
// Callbacks run synchronously on the writing goroutine; observers that do
// real work should hand it off themselves.
func (o *observers) Subscribe(fn func(Event)) func() {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()

	if o.obs == nil {
		o.obs = make(map[int]func(Event))
	}
	id := o.nextObs
	o.nextObs++
	o.obs[id] = fn

	return func() {
		o.obsMu.Lock()
		defer o.obsMu.Unlock()
		delete(o.obs, id)
	}
}

func (o *observers) notify(ev Event) {
	o.obsMu.RLock()
	fns := make([]func(Event), 0, len(o.obs))
	for _, fn := range o.obs {
		fns = append(fns, fn)
	}
	o.obsMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
