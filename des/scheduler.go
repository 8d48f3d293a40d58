// Package des implements a process-oriented discrete-event simulation
// kernel: a virtual clock, a priority event queue coalesced by timestamp,
// and a request/dispatch protocol that lets many goroutine-backed client
// processes suspend themselves until a scheduled virtual time.
package des

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Config controls how a Scheduler is built. Use the With* options with
// NewScheduler rather than constructing Config directly.
type Config struct {
	StartTime          float64
	WatchdogInterval   time.Duration
	RequestBusCapacity int
}

// Option configures a Scheduler at construction time.
type Option func(*Config)

// WithStartTime sets the virtual clock's initial value (default 0.0).
func WithStartTime(t float64) Option {
	return func(c *Config) { c.StartTime = t }
}

// WithWatchdogInterval overrides the Watchdog's wall-clock sampling cadence
// (default 100ms, as spec §4.5 documents).
func WithWatchdogInterval(d time.Duration) Option {
	return func(c *Config) { c.WatchdogInterval = d }
}

// WithRequestBusCapacity sizes the fast-path buffered channel clients use to
// publish requests. Publishing never blocks regardless of this value — once
// the buffer is full, requests spill into an unbounded overflow slice — but
// a generous capacity avoids that slower path under ordinary load.
func WithRequestBusCapacity(n int) Option {
	return func(c *Config) { c.RequestBusCapacity = n }
}

// emptyGracePeriod bounds how long the main loop waits, once the queue is
// empty and no client appears to be mid-call, before concluding the run
// has genuinely quiesced. It exists only to absorb the ordinary goroutine
// scheduling delay between a client being resumed and that same client
// placing its next request.
const emptyGracePeriod = 5 * time.Millisecond

func defaultConfig() Config {
	return Config{
		WatchdogInterval:   100 * time.Millisecond,
		RequestBusCapacity: 4096,
	}
}

// request is the single type carried over the RequestBus. Exactly one of
// event / interrupt is set.
type request struct {
	event     *Event
	interrupt *interruptRequest
}

type interruptRequest struct {
	target Client
	err    error
}

// Scheduler is the central state described in spec §3 ("Simulation (DES)"),
// named Scheduler here to keep "Simulation" free for the ambient reporting
// layer (monitoring, tracing) built on top of it.
type Scheduler struct {
	HookableBase

	cfg Config

	time float64

	queue    *EventQueue
	registry *ClientRegistry

	fastPath chan request

	slowMu   sync.Mutex
	slowPath []request
	wake     chan struct{}

	termination Termination
}

// NewScheduler creates a Scheduler whose virtual clock starts at 0.0 unless
// overridden with WithStartTime.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Scheduler{
		cfg:      cfg,
		time:     cfg.StartTime,
		queue:    NewEventQueue(),
		registry: NewClientRegistry(),
		fastPath: make(chan request, cfg.RequestBusCapacity),
		wake:     make(chan struct{}, 1),
	}
}

// CurrentTime implements TimeTeller.
func (s *Scheduler) CurrentTime() float64 {
	return s.readTime()
}

func (s *Scheduler) readTime() float64 {
	s.slowMu.Lock()
	t := s.time
	s.slowMu.Unlock()
	return t
}

func (s *Scheduler) writeTime(t float64) {
	s.slowMu.Lock()
	s.time = t
	s.slowMu.Unlock()
}

// Now returns the scheduler's current virtual time.
func Now(s *Scheduler) float64 {
	return s.readTime()
}

// Register adds each client with an empty slot list. A client must be
// registered before it may call Delay/DelayUntil.
func Register(s *Scheduler, clients ...Client) {
	for _, c := range clients {
		s.registry.Register(c)
		s.InvokeHook(HookCtx{Domain: s, Pos: HookPosRegister, Item: c})
	}
}

// QueueLen reports the number of distinct pending timestamps. Exposed for
// monitoring; not part of the client-facing Library surface.
func (s *Scheduler) QueueLen() int {
	return s.queue.Len()
}

// Snapshot is a read-only view of scheduler state, safe to sample from
// another goroutine (e.g. the monitoring HTTP handlers) while Simulate is
// running.
type Snapshot struct {
	Time        float64
	QueueLen    int
	Clients     int
	Termination Termination
}

// Snapshot returns the scheduler's current externally-visible state.
func (s *Scheduler) Snapshot() Snapshot {
	s.slowMu.Lock()
	termination := s.termination
	s.slowMu.Unlock()

	return Snapshot{
		Time:        s.readTime(),
		QueueLen:    s.queue.Len(),
		Clients:     len(s.registry.Clients()),
		Termination: termination,
	}
}

// publish submits r on the fast path if there is room, otherwise appends it
// to the unbounded overflow slice. Either way this never blocks the caller.
func (s *Scheduler) publish(r request) {
	select {
	case s.fastPath <- r:
	default:
		s.slowMu.Lock()
		s.slowPath = append(s.slowPath, r)
		s.slowMu.Unlock()
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Delay is equivalent to DelayUntil(s, c, Now(s)+dt, opts...).
func Delay(s *Scheduler, c Client, dt float64, opts ...EventOption) (any, error) {
	return DelayUntil(s, c, s.readTime()+dt, opts...)
}

// DelayUntil constructs an Event for timestamp t, publishes it on the
// RequestBus, then blocks on its rendezvous until the Scheduler resumes or
// interrupts the caller.
func DelayUntil(
	s *Scheduler,
	c Client,
	t float64,
	opts ...EventOption,
) (any, error) {
	if !s.registry.Known(c) {
		return nil, fmt.Errorf("des: client %v is not registered", c)
	}

	evt := newEvent(c, t, opts)
	s.publish(request{event: evt})

	d := <-evt.rendezvous
	return d.Value, d.Err
}

// Interrupt asks the Scheduler to fail c's currently outstanding
// Delay/DelayUntil call with err instead of letting it resolve normally. It
// is itself routed through the RequestBus so it is processed with the same
// single-writer ordering guarantee as any other request (spec §5): an
// interrupt published before the Scheduler's next ingest pass is guaranteed
// visible in that pass.
func Interrupt(s *Scheduler, c Client, err error) {
	if err == nil {
		err = ErrFailure
	}
	s.publish(request{interrupt: &interruptRequest{target: c, err: err}})
}

// drainAvailable moves every request currently waiting (fast path and
// overflow) into the EventQueue/ClientRegistry, or performs the interrupts
// it carries. It never blocks. It returns the number of requests consumed.
func (s *Scheduler) drainAvailable() int {
	n := 0

	for {
		select {
		case r := <-s.fastPath:
			s.fileRequest(r)
			n++
		default:
			goto overflow
		}
	}

overflow:
	s.slowMu.Lock()
	pending := s.slowPath
	s.slowPath = nil
	s.slowMu.Unlock()

	for _, r := range pending {
		s.fileRequest(r)
		n++
	}

	return n
}

func (s *Scheduler) fileRequest(r request) {
	if r.event != nil {
		slot := s.queue.Insert(r.event)
		s.registry.AddSlot(r.event.Owner, slot)
		return
	}

	s.interruptOwner(r.interrupt.target, r.interrupt.err)
}

// interruptOwner implements spec §4.3 exactly: every slot the owner
// occupies is cleaned up (dropped entirely if the owner was its only
// occupant, otherwise just the owner's events are filtered out), the
// owner's slot list is cleared, and every event that was removed has its
// rendezvous fired with err. A client that never has more than one
// outstanding Delay/DelayUntil call (the only way the public Client API can
// be used) has at most one removed event, so exactly one rendezvous send
// happens and its reader — the blocked caller — is always present.
func (s *Scheduler) interruptOwner(owner Client, err error) {
	slots := s.registry.Clear(owner)

	for _, slotID := range slots {
		removed := s.queue.RemoveEventsOfOwner(slotID, owner)
		for _, e := range removed {
			s.InvokeHook(HookCtx{Domain: s, Pos: HookPosInterrupt, Item: e, Detail: err})
			e.rendezvous <- Delivery{Err: err}
		}
	}
}

// outstandingWork is the Watchdog's non-progress predicate: the queue has
// at least one live slot. This is the literal condition of spec §4.5,
// kept as a safety net for a wedged delivery (a rendezvous send that
// cannot complete because nothing reads it, which pins a slot in the
// queue while CurrentTime stops advancing).
func (s *Scheduler) outstandingWork() bool {
	return s.queue.Len() > 0
}

// hasInFlightWork reports whether anything could still turn into a future
// queue entry: a request already sitting in the fast or overflow path, or
// a client currently blocked inside a Delay/DelayUntil call (Pending). A
// client that is merely registered but not presently inside a call, with
// an empty queue and nothing in flight, structurally cannot produce any
// more work — the only way the public API creates an Event is from inside
// such a call. This is what lets a cleanly-finished simulation (every
// client done, nobody waiting) exit immediately instead of blocking until
// the Watchdog eventually times out.
func (s *Scheduler) hasInFlightWork() bool {
	if len(s.fastPath) > 0 {
		return true
	}
	s.slowMu.Lock()
	overflow := len(s.slowPath) > 0
	s.slowMu.Unlock()
	if overflow {
		return true
	}
	return s.registry.HasPending()
}

// SimulateConfig controls one Simulate call.
type SimulateConfig struct {
	finish bool
}

// SimulateOption customizes a Simulate call.
type SimulateOption func(*SimulateConfig)

// WithoutFinish disables the default behavior of interrupting every
// still-suspended client with ErrFinished when the horizon is reached.
func WithoutFinish() SimulateOption {
	return func(c *SimulateConfig) { c.finish = false }
}

// Simulate advances s by horizon units of virtual time and reports why it
// stopped. It is the package-level mirror of (*Scheduler).Simulate, kept so
// every Library operation reads the same way: func(s *Scheduler, ...).
func Simulate(s *Scheduler, horizon float64, opts ...SimulateOption) (*Report, error) {
	return s.simulate(horizon, opts...)
}

// simulate runs the Scheduler's main loop until the queue empties, the
// horizon is crossed, or idleness is detected — implementing the step
// algorithm of spec §4.2. It returns only after termination.
func (s *Scheduler) simulate(horizon float64, opts ...SimulateOption) (*Report, error) {
	cfg := SimulateConfig{finish: true}
	for _, o := range opts {
		o(&cfg)
	}

	start := time.Now()
	startTime := s.readTime()
	stime := startTime + horizon

	idleCh := make(chan struct{}, 1)
	signalIdle := func() {
		select {
		case idleCh <- struct{}{}:
		default:
		}
	}

	wd := NewWatchdog(s.cfg.WatchdogInterval, s, s.outstandingWork, signalIdle)
	wd.Start()
	defer wd.Stop()

	termination := TerminationUnset
	poppedCount := 0

	if s.readTime() >= stime {
		s.drainAvailable()
		if s.queue.Len() > 0 {
			termination = TerminationDone
		} else {
			termination = TerminationEmpty
		}
	}

	for termination == TerminationUnset && s.readTime() < stime {
		drained := s.drainAvailable()

		select {
		case <-idleCh:
			termination = TerminationIdle
		default:
		}
		if termination != TerminationUnset {
			break
		}

		if s.queue.Len() == 0 {
			if drained > 0 {
				continue
			}

			if !s.hasInFlightWork() {
				// Nothing is queued and no client is mid-call, but a client
				// that was *just* resumed this instant hasn't necessarily
				// had its goroutine scheduled yet to place its next
				// request. Give it a short grace window before concluding
				// the run is actually over.
				select {
				case <-s.wake:
					continue
				case <-idleCh:
					termination = TerminationIdle
					continue
				case <-time.After(emptyGracePeriod):
					if !s.hasInFlightWork() && s.queue.Len() == 0 {
						termination = TerminationEmpty
					}
					continue
				}
			}

			select {
			case <-s.wake:
				continue
			case <-idleCh:
				termination = TerminationIdle
				continue
			}
		}

		slotID, t, ok := s.queue.PeekMin()
		if !ok {
			continue
		}

		now := s.readTime()
		if t < now {
			log.Panicf("des: time regression, slot @ %.10f, now %.10f", t, now)
		}

		s.writeTime(t)

		done := s.deliverSlot(slotID, t, stime, cfg.finish)
		poppedCount++

		if done {
			termination = TerminationDone
		}
	}

	s.writeTime(stime)

	switch {
	case termination == TerminationIdle:
		for _, c := range s.registry.Clients() {
			if s.registry.Pending(c) {
				s.interruptOwner(c, ErrIdle)
			}
		}

	case cfg.finish:
		for _, c := range s.registry.Clients() {
			if s.registry.Pending(c) {
				s.interruptOwner(c, ErrFinished)
			}
		}
		if termination == TerminationUnset {
			termination = TerminationFinished
		}
	}

	if termination == TerminationUnset {
		termination = TerminationEmpty
	}

	s.slowMu.Lock()
	s.termination = termination
	s.slowMu.Unlock()

	report := &Report{
		Termination:  termination,
		FinalTime:    stime,
		Duration:     time.Since(start),
		EventsPopped: poppedCount,
	}

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosTerminate, Item: report})

	return report, nil
}

// deliverSlot implements spec §4.2 step d, with the horizon check applied
// once per slot (see SPEC_FULL.md §9 for the chosen resolution of the open
// question on horizon/slot asymmetry): if the slot's timestamp is at or
// beyond stime, every error event in it still fires as a FAILURE interrupt
// (explicit failures are never held back). No other event in the slot is
// resumed with a value: with finish set, deliverSlot itself resolves each of
// them with ErrFinished and pops the slot; with finish disabled the slot
// stays queued and those clients are left suspended. Below the horizon,
// every error event in the slot is interrupted first, and the remaining
// events are then delivered in submission order, so an error event is
// resolved before a normal event submitted ahead of it in the same slot.
func (s *Scheduler) deliverSlot(slot int64, t, stime float64, finish bool) (terminatesWithDone bool) {
	events := s.queue.PeekSlot(slot)
	handled := make(map[Client]bool, len(events))

	if t >= stime {
		for _, e := range events {
			if !handled[e.Owner] && e.Err {
				handled[e.Owner] = true
				s.interruptOwner(e.Owner, ErrFailure)
			}
		}

		if finish {
			for _, e := range events {
				if handled[e.Owner] {
					continue
				}
				handled[e.Owner] = true

				s.registry.RemoveSlot(e.Owner, slot)
				s.InvokeHook(HookCtx{Domain: s, Pos: HookPosInterrupt, Item: e, Detail: ErrFinished})
				e.rendezvous <- Delivery{Err: ErrFinished}
			}

			s.queue.PopSlot(slot)
		}

		return true
	}

	// Interrupt every error-owner first, exactly as the t >= stime branch
	// above does, before any PopSlot call: RemoveEventsOfOwner(slot, ...)
	// needs the slot to still exist in eventsBySlot. Popping the slot while
	// an error event for a different owner is still pending would delete
	// that owner's event out from under it and leave its rendezvous
	// unresolved forever.
	for _, e := range events {
		if !handled[e.Owner] && e.Err {
			handled[e.Owner] = true
			s.interruptOwner(e.Owner, ErrFailure)
		}
	}

	s.queue.PopSlot(slot)

	for _, e := range events {
		if handled[e.Owner] {
			continue
		}
		handled[e.Owner] = true

		s.registry.RemoveSlot(e.Owner, slot)

		s.InvokeHook(HookCtx{Domain: s, Pos: HookPosBeforeDeliver, Item: e})
		e.rendezvous <- Delivery{Value: e.Value}
		s.InvokeHook(HookCtx{Domain: s, Pos: HookPosAfterDeliver, Item: e})
	}

	return false
}
