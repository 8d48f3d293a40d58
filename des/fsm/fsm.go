// Package fsm adapts a plain value object to the des.Scheduler Library
// surface without requiring a dedicated goroutine per client. Where a
// goroutine-backed client blocks on des.DelayUntil and resumes in place,
// an fsm client is driven synchronously: DriveStep submits its request,
// waits for delivery, and hands the result back to Step for the next
// decision — all on the caller's own goroutine.
//
// This exists for models with far more clients than a process can afford
// one goroutine each for; it is an additive alternative to the goroutine
// style, not a replacement; both can be registered on the same Scheduler.
package fsm

import "github.com/sarchlab/desim/des"

// Request is what a StepClient asks the scheduler to do next.
type Request struct {
	// At is the absolute virtual time to resume at.
	At float64
	// Opts customize the underlying Event (e.g. des.WithError).
	Opts []des.EventOption
}

// StepClient is a client process represented as a value rather than a
// goroutine. Step receives the Delivery from the client's previous
// request (the zero Delivery on the very first call) and returns the next
// Request to submit, or done=true if the client has nothing further to
// do.
type StepClient interface {
	Step(d des.Delivery) (next Request, done bool)
}

// DriveStep registers client with s and repeatedly calls
// c.Step, submitting each returned Request via des.DelayUntil, until c
// reports done or a request resolves with a non-nil error. It returns that
// error, or nil if the client finished on its own.
//
// DriveStep blocks its caller for the client's entire lifetime, exactly
// like a goroutine-backed client's own run loop would block that
// goroutine — the difference is only that no goroutine is spun up to do
// it, so callers that want concurrency across many StepClients must drive
// each one from its own goroutine (or its own slice, processed in turn,
// for models that genuinely want single-threaded stepping).
func DriveStep(s *des.Scheduler, c StepClient, client des.Client) error {
	des.Register(s, client)

	var delivery des.Delivery
	for {
		req, done := c.Step(delivery)
		if done {
			return nil
		}

		value, err := des.DelayUntil(s, client, req.At, req.Opts...)
		if err != nil {
			return err
		}
		delivery = des.Delivery{Value: value}
	}
}
