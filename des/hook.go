package des

// HookPos defines the enum of possible hooking positions around the
// scheduler's life.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that
// a hook is triggered from.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accepts Hooks.
type Hookable interface {
	AcceptHook(hook Hook)
}

// HookPosBeforeDeliver triggers right before an event's value is handed to
// its owner's rendezvous channel. Interrupts trigger HookPosInterrupt
// instead.
var HookPosBeforeDeliver = &HookPos{Name: "BeforeDeliver"}

// HookPosAfterDeliver triggers right after delivery completes.
var HookPosAfterDeliver = &HookPos{Name: "AfterDeliver"}

// HookPosRegister triggers when a client process registers with the
// scheduler.
var HookPosRegister = &HookPos{Name: "Register"}

// HookPosInterrupt triggers when a client is interrupted.
var HookPosInterrupt = &HookPos{Name: "Interrupt"}

// HookPosTerminate triggers once, when Simulate decides the termination
// cause for the run.
var HookPosTerminate = &HookPos{Name: "Terminate"}

// Hook is a short piece of program that can be invoked by a Hookable object.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase provides the common bookkeeping for types that implement
// Hookable.
type HookableBase struct {
	hooks []Hook
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

// InvokeHook triggers the registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
