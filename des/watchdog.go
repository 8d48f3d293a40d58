package des

import "time"

// TimeTeller can be used to get the current virtual time. Mirrors the
// teacher's own TimeTeller abstraction for engines, reused here so the
// Watchdog can be unit-tested against a stub instead of a live Scheduler.
type TimeTeller interface {
	CurrentTime() float64
}

// Watchdog is the parallel observer described in spec §4.5. It samples a
// TimeTeller at a fixed real-time cadence; if virtual time has not moved
// between two consecutive samples while outstandingFn reports work still
// outstanding, it invokes onIdle exactly once and stops.
//
// The watchdog never touches the EventQueue or ClientRegistry directly — it
// communicates solely through onIdle, matching the single-writer rule in
// spec §5.
type Watchdog struct {
	interval    time.Duration
	teller      TimeTeller
	outstanding func() bool
	onIdle      func()

	stop chan struct{}
	done chan struct{}
}

// NewWatchdog creates a Watchdog. outstanding should report whether the
// simulation still has work pending; the Scheduler passes a predicate that
// is true exactly when its EventQueue is non-empty.
func NewWatchdog(
	interval time.Duration,
	teller TimeTeller,
	outstanding func() bool,
	onIdle func(),
) *Watchdog {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	return &Watchdog{
		interval:    interval,
		teller:      teller,
		outstanding: outstanding,
		onIdle:      onIdle,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the sampling goroutine.
func (w *Watchdog) Start() {
	go w.run()
}

// Stop asks the sampling goroutine to exit and waits for it to do so. Safe
// to call more than once.
func (w *Watchdog) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
}

func (w *Watchdog) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	lastTime := w.teller.CurrentTime()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			now := w.teller.CurrentTime()
			if now == lastTime && w.outstanding() {
				w.onIdle()
				return
			}
			lastTime = now
		}
	}
}
