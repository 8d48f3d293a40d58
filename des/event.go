package des

import "errors"

// ErrFailure is injected into a client when it (or another client acting on
// the scheduler's behalf) explicitly asks for an error delivery.
var ErrFailure = errors.New("des: failure")

// ErrIdle is injected into every still-pending client when the Watchdog
// detects that virtual time has stalled with outstanding work.
var ErrIdle = errors.New("des: idle")

// ErrFinished is injected into every client still suspended when Simulate
// exits with its finish option set.
var ErrFinished = errors.New("des: finished")

// errDone names the DONE cause: the next scheduled event lies at or beyond
// the horizon. The scheduler loop does not use it; deliverSlot reports that
// cause through its return value, and it never reaches a client.
var errDone = errors.New("des: done")

// Client identifies a registered process. The kernel never calls methods on
// it; it only uses it as a map key, so any comparable value works — a
// pointer to an application-defined process struct is the common case.
type Client = any

// Delivery is what a rendezvous channel carries: exactly one value, sent
// exactly once, per Event.rendezvous lifetime (spec invariant 5).
type Delivery struct {
	Value any
	Err   error
}

// Event describes a single pending wake-up. Once submitted to a Scheduler an
// Event is immutable; the EventQueue is the only writer of its bookkeeping
// field slot.
type Event struct {
	ID    string
	Time  float64
	Value any
	Err   bool
	Owner Client

	rendezvous chan Delivery
	seq        uint64 // not set or read; ties within a slot follow its list order
	slot       int64  // set once filed into the EventQueue
}

// EventOption customizes an Event before it is submitted.
type EventOption func(*Event)

// WithValue overrides the payload delivered on wake-up. Without this option
// the payload defaults to the event's timestamp.
func WithValue(v any) EventOption {
	return func(e *Event) { e.Value = v }
}

// WithError marks the event so its owner is resumed via ErrFailure instead
// of a normal delivery.
func WithError() EventOption {
	return func(e *Event) { e.Err = true }
}

func newEvent(owner Client, t float64, opts []EventOption) *Event {
	e := &Event{
		ID:         GetIDGenerator().Generate(),
		Time:       t,
		Value:      t,
		Owner:      owner,
		rendezvous: make(chan Delivery),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
