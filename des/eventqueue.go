package des

import (
	"container/heap"
	"sync"
)

// timeSlot is the queue's per-timestamp bucket. Every Event enqueued for the
// same timestamp shares one timeSlot, so the heap orders distinct instants
// rather than individual events.
type timeSlot struct {
	id    int64
	time  float64
	index int // maintained by slotHeap, required by heap.Fix/Remove
}

// slotHeap is a container/heap.Interface over timeSlots, ordered by time.
// Unlike the plain event-heap pattern this tracks each element's index so a
// slot can be removed from the middle of the heap (required by
// removeEventsOfOwner, which must be able to drop a slot even when it is not
// the current minimum).
type slotHeap []*timeSlot

func (h slotHeap) Len() int            { return len(h) }
func (h slotHeap) Less(i, j int) bool  { return h[i].time < h[j].time }
func (h slotHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *slotHeap) Push(x interface{}) {
	s := x.(*timeSlot)
	s.index = len(*h)
	*h = append(*h, s)
}

func (h *slotHeap) Pop() interface{} {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}

// EventQueue is the min-ordered collection over distinct virtual timestamps
// described in spec §4.1. It coalesces events that share an exact timestamp
// into one slot so queue operations stay logarithmic in the number of
// distinct instants, not the number of events.
type EventQueue struct {
	mu sync.Mutex

	heap         slotHeap
	slotByID     map[int64]*timeSlot
	timeIndex    map[float64]int64 // timestamp -> slot id
	eventsBySlot map[int64][]*Event
	nextSlotID   int64
}

// NewEventQueue creates an empty EventQueue.
func NewEventQueue() *EventQueue {
	return &EventQueue{
		slotByID:     make(map[int64]*timeSlot),
		timeIndex:    make(map[float64]int64),
		eventsBySlot: make(map[int64][]*Event),
	}
}

// Insert files an event into the queue. If a live slot already exists for
// evt.Time, the event is appended to that slot's list (preserving
// submission order for tie-breaking); otherwise a fresh slot is allocated.
func (q *EventQueue) Insert(evt *Event) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	slotID, ok := q.timeIndex[evt.Time]
	if !ok {
		slotID = q.nextSlotID
		q.nextSlotID++

		slot := &timeSlot{id: slotID, time: evt.Time}
		q.timeIndex[evt.Time] = slotID
		q.slotByID[slotID] = slot
		heap.Push(&q.heap, slot)
	}

	evt.slot = slotID
	q.eventsBySlot[slotID] = append(q.eventsBySlot[slotID], evt)

	return slotID
}

// Len returns the number of live slots (distinct pending timestamps).
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.heap)
}

// PeekMin returns the slot with the minimum timestamp without removing it.
// ok is false when the queue is empty.
func (q *EventQueue) PeekMin() (slot int64, t float64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return 0, 0, false
	}

	top := q.heap[0]
	return top.id, top.time, true
}

// PopSlot removes a slot and its timestamp from the queue, returning the
// events that were filed under it in submission order.
func (q *EventQueue) PopSlot(slot int64) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.popSlotLocked(slot)
}

func (q *EventQueue) popSlotLocked(slot int64) []*Event {
	s, ok := q.slotByID[slot]
	if !ok {
		return nil
	}

	heap.Remove(&q.heap, s.index)
	delete(q.slotByID, slot)
	delete(q.timeIndex, s.time)

	events := q.eventsBySlot[slot]
	delete(q.eventsBySlot, slot)

	return events
}

// RemoveEventsOfOwner drops every event owned by owner from slot and
// returns exactly those removed events, so the caller can resolve their
// rendezvous channels. If the slot's event list becomes empty as a result,
// the whole slot is popped from the queue.
func (q *EventQueue) RemoveEventsOfOwner(slot int64, owner Client) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	events, ok := q.eventsBySlot[slot]
	if !ok {
		return nil
	}

	var removedEvents []*Event
	kept := make([]*Event, 0, len(events))
	for _, e := range events {
		if e.Owner == owner {
			removedEvents = append(removedEvents, e)
			continue
		}
		kept = append(kept, e)
	}

	if len(removedEvents) == 0 {
		return nil
	}

	if len(kept) == 0 {
		q.popSlotLocked(slot)
	} else {
		q.eventsBySlot[slot] = kept
	}

	return removedEvents
}

// PeekSlot returns the events currently filed under slot without removing
// them or the slot itself.
func (q *EventQueue) PeekSlot(slot int64) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.eventsBySlot[slot]
}
