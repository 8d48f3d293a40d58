package des

import (
	"fmt"
	"log"
	"os"
)

// EventLogger is a Hook that writes one line per registration, delivery,
// interrupt and termination to an underlying *log.Logger. It is the
// minimal, always available observability hook; tracing.Hook builds a
// richer Hook on the same HookCtx values.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger creates an EventLogger writing to os.Stderr with a
// "[des] " prefix. Use WithLogger to redirect it.
func NewEventLogger() *EventLogger {
	return &EventLogger{logger: log.New(os.Stderr, "[des] ", log.LstdFlags)}
}

// WithLogger swaps the destination *log.Logger.
func (l *EventLogger) WithLogger(logger *log.Logger) *EventLogger {
	l.logger = logger
	return l
}

// Func implements Hook.
func (l *EventLogger) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosRegister:
		l.logger.Printf("register client=%v", ctx.Item)

	case HookPosBeforeDeliver:
		e, ok := ctx.Item.(*Event)
		if !ok {
			return
		}
		l.logger.Printf("deliver id=%s time=%.6f owner=%v", e.ID, e.Time, e.Owner)

	case HookPosInterrupt:
		e, ok := ctx.Item.(*Event)
		if !ok {
			return
		}
		l.logger.Printf("interrupt id=%s time=%.6f owner=%v err=%v", e.ID, e.Time, e.Owner, ctx.Detail)

	case HookPosTerminate:
		r, ok := ctx.Item.(*Report)
		if !ok {
			return
		}
		l.logger.Printf(
			"terminate cause=%s final_time=%.6f events=%d duration=%s",
			r.Termination, r.FinalTime, r.EventsPopped, r.Duration,
		)
	}
}

// String implements fmt.Stringer for human-readable diagnostics.
func (l *EventLogger) String() string {
	return fmt.Sprintf("EventLogger(%p)", l)
}
