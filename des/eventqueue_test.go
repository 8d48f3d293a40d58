package des

import (
	"math/rand"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("EventQueue", func() {
	var queue *EventQueue

	ginkgo.BeforeEach(func() {
		queue = NewEventQueue()
	})

	ginkgo.It("should pop slots in time order", func() {
		n := 200
		for i := 0; i < n; i++ {
			queue.Insert(newEvent(i, rand.Float64()*1e6, nil))
		}

		now := -1.0
		for queue.Len() > 0 {
			slot, t, ok := queue.PeekMin()
			Expect(ok).To(BeTrue())
			Expect(t >= now).To(BeTrue())
			now = t
			queue.PopSlot(slot)
		}
	})

	ginkgo.It("should coalesce events that share a timestamp into one slot", func() {
		queue.Insert(newEvent("a", 5.0, nil))
		queue.Insert(newEvent("b", 5.0, nil))
		queue.Insert(newEvent("c", 5.0, nil))

		Expect(queue.Len()).To(Equal(1))

		slot, t, ok := queue.PeekMin()
		Expect(ok).To(BeTrue())
		Expect(t).To(Equal(5.0))

		events := queue.PopSlot(slot)
		Expect(events).To(HaveLen(3))
		Expect(events[0].Owner).To(Equal("a"))
		Expect(events[1].Owner).To(Equal("b"))
		Expect(events[2].Owner).To(Equal("c"))
	})

	ginkgo.It("should preserve submission order within a slot", func() {
		for i := 0; i < 10; i++ {
			queue.Insert(newEvent(i, 1.0, nil))
		}

		slot, _, ok := queue.PeekMin()
		Expect(ok).To(BeTrue())

		events := queue.PopSlot(slot)
		for i, e := range events {
			Expect(e.Owner).To(Equal(i))
		}
	})

	ginkgo.It("should remove only the given owner's events from a shared slot", func() {
		queue.Insert(newEvent("a", 3.0, nil))
		evtB := newEvent("b", 3.0, nil)
		queue.Insert(evtB)

		removed := queue.RemoveEventsOfOwner(evtB.slot, "b")
		Expect(removed).To(HaveLen(1))
		Expect(removed[0].Owner).To(Equal("b"))

		Expect(queue.Len()).To(Equal(1))
		remaining := queue.PeekSlot(removed[0].slot)
		Expect(remaining).To(HaveLen(1))
		Expect(remaining[0].Owner).To(Equal("a"))
	})

	ginkgo.It("should drop the whole slot when its last owner is removed", func() {
		evt := newEvent("solo", 7.0, nil)
		queue.Insert(evt)

		removed := queue.RemoveEventsOfOwner(evt.slot, "solo")
		Expect(removed).To(HaveLen(1))
		Expect(queue.Len()).To(Equal(0))
	})

	ginkgo.It("should allow removing a slot that is not the current minimum", func() {
		queue.Insert(newEvent("early", 1.0, nil))
		late := newEvent("late", 99.0, nil)
		queue.Insert(late)

		removed := queue.RemoveEventsOfOwner(late.slot, "late")
		Expect(removed).To(HaveLen(1))
		Expect(queue.Len()).To(Equal(1))

		_, t, ok := queue.PeekMin()
		Expect(ok).To(BeTrue())
		Expect(t).To(Equal(1.0))
	})
})
