package des

import (
	"sync"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Scheduler", func() {
	var s *Scheduler

	ginkgo.BeforeEach(func() {
		s = NewScheduler()
	})

	ginkgo.It("resumes a client at the right virtual times and exits cleanly", func() {
		type clientA struct{}
		a := &clientA{}
		Register(s, a)

		firstResume := make(chan float64, 1)
		secondResume := make(chan float64, 1)

		go func() {
			defer ginkgo.GinkgoRecover()

			_, err := Delay(s, a, 1.0)
			Expect(err).NotTo(HaveOccurred())
			firstResume <- Now(s)

			_, err = Delay(s, a, 2.5)
			Expect(err).NotTo(HaveOccurred())
			secondResume <- Now(s)
		}()

		report, err := Simulate(s, 5.0)
		Expect(err).NotTo(HaveOccurred())

		Expect(<-firstResume).To(Equal(1.0))
		Expect(<-secondResume).To(Equal(3.5))
		Expect(report.FinalTime).To(Equal(5.0))
		Expect(report.Termination).To(Equal(TerminationEmpty))
	})

	ginkgo.It("resumes clients sharing a timestamp in submission order", func() {
		type client struct{ name string }
		a := &client{"a"}
		b := &client{"b"}
		Register(s, a, b)

		var mu sync.Mutex
		var order []string

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer ginkgo.GinkgoRecover()
			defer wg.Done()
			_, err := Delay(s, a, 2.0)
			Expect(err).NotTo(HaveOccurred())
			mu.Lock()
			order = append(order, "a")
			mu.Unlock()
		}()

		time.Sleep(time.Millisecond)

		go func() {
			defer ginkgo.GinkgoRecover()
			defer wg.Done()
			_, err := Delay(s, b, 2.0)
			Expect(err).NotTo(HaveOccurred())
			mu.Lock()
			order = append(order, "b")
			mu.Unlock()
		}()

		time.Sleep(time.Millisecond)

		_, err := Simulate(s, 3.0)
		Expect(err).NotTo(HaveOccurred())

		wg.Wait()
		Expect(order).To(Equal([]string{"a", "b"}))
	})

	ginkgo.It("cleans up an interrupted client's wait", func() {
		type client struct{}
		a := &client{}
		Register(s, a)

		resultErr := make(chan error, 1)

		go func() {
			defer ginkgo.GinkgoRecover()
			_, err := Delay(s, a, 10.0)
			resultErr <- err
		}()

		time.Sleep(5 * time.Millisecond)
		Interrupt(s, a, ErrFailure)

		report, err := Simulate(s, 20.0)
		Expect(err).NotTo(HaveOccurred())

		Expect(<-resultErr).To(MatchError(ErrFailure))
		Expect(report.Termination).To(Equal(TerminationEmpty))
		Expect(s.QueueLen()).To(Equal(0))
	})

	ginkgo.It("delivers an explicit error event as a failure", func() {
		type client struct{}
		a := &client{}
		Register(s, a)

		resultErr := make(chan error, 1)

		go func() {
			defer ginkgo.GinkgoRecover()
			_, err := DelayUntil(s, a, 3.0, WithError())
			resultErr <- err
		}()

		report, err := Simulate(s, 10.0)
		Expect(err).NotTo(HaveOccurred())

		Expect(<-resultErr).To(MatchError(ErrFailure))
		Expect(report.Termination).To(Equal(TerminationEmpty))
	})

	ginkgo.It("resolves a coalesced slot's error event even when a normal event for another owner shares it", func() {
		type client struct{ name string }
		a := &client{"a"} // normal delivery
		b := &client{"b"} // explicit failure
		Register(s, a, b)

		resultA := make(chan error, 1)
		resultB := make(chan error, 1)

		go func() {
			defer ginkgo.GinkgoRecover()
			_, err := Delay(s, a, 2.0)
			resultA <- err
		}()
		go func() {
			defer ginkgo.GinkgoRecover()
			_, err := DelayUntil(s, b, 2.0, WithError())
			resultB <- err
		}()

		report, err := Simulate(s, 5.0)
		Expect(err).NotTo(HaveOccurred())

		Expect(<-resultA).NotTo(HaveOccurred())
		Expect(<-resultB).To(MatchError(ErrFailure))
		Expect(report.Termination).To(Equal(TerminationEmpty))
	})

	ginkgo.It("cuts delivery at the horizon and finishes the suspended client", func() {
		type client struct{}
		a := &client{}
		Register(s, a)

		seen := make(chan float64, 2)
		finalErr := make(chan error, 1)

		go func() {
			defer ginkgo.GinkgoRecover()

			for _, dt := range []float64{1.0, 1.0, 3.0} {
				_, err := Delay(s, a, dt)
				if err != nil {
					finalErr <- err
					return
				}
				seen <- Now(s)
			}
		}()

		report, err := Simulate(s, 4.0)
		Expect(err).NotTo(HaveOccurred())

		Expect(<-seen).To(Equal(1.0))
		Expect(<-seen).To(Equal(2.0))
		Expect(<-finalErr).To(MatchError(ErrFinished))
		Expect(report.Termination).To(Equal(TerminationDone))
		Expect(report.FinalTime).To(Equal(4.0))
	})

	ginkgo.It("rejects a request from an unregistered client", func() {
		type client struct{}
		a := &client{}

		_, err := Delay(s, a, 1.0)
		Expect(err).To(HaveOccurred())
	})

	ginkgo.It("runs multiple independent clients to completion", func() {
		type client struct{ id int }
		clients := make([]*client, 5)
		for i := range clients {
			clients[i] = &client{id: i}
		}
		Register(s, toClientSlice(clients)...)

		done := make(chan int, len(clients))
		for _, c := range clients {
			c := c
			go func() {
				defer ginkgo.GinkgoRecover()
				_, err := Delay(s, c, float64(c.id)+1.0)
				Expect(err).NotTo(HaveOccurred())
				done <- c.id
			}()
		}

		report, err := Simulate(s, 10.0)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Termination).To(Equal(TerminationEmpty))

		seen := map[int]bool{}
		for i := 0; i < len(clients); i++ {
			seen[<-done] = true
		}
		Expect(seen).To(HaveLen(len(clients)))
	})
})

func toClientSlice[T any](items []*T) []Client {
	out := make([]Client, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}

var _ = ginkgo.Describe("Watchdog", func() {
	ginkgo.It("fires onIdle when time stalls while work is outstanding", func() {
		var calls int
		var mu sync.Mutex

		wd := NewWatchdog(5*time.Millisecond, stubTeller(0), func() bool { return true }, func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})

		wd.Start()
		time.Sleep(30 * time.Millisecond)
		wd.Stop()

		mu.Lock()
		defer mu.Unlock()
		Expect(calls).To(Equal(1))
	})

	ginkgo.It("never fires while time keeps advancing", func() {
		var calls int
		var mu sync.Mutex
		var tick int64

		teller := tellerFunc(func() float64 {
			return float64(atomicInc(&tick))
		})

		wd := NewWatchdog(2*time.Millisecond, teller, func() bool { return true }, func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})

		wd.Start()
		time.Sleep(20 * time.Millisecond)
		wd.Stop()

		mu.Lock()
		defer mu.Unlock()
		Expect(calls).To(Equal(0))
	})
})

type stubTeller float64

func (t stubTeller) CurrentTime() float64 { return float64(t) }

type tellerFunc func() float64

func (f tellerFunc) CurrentTime() float64 { return f() }

func atomicInc(p *int64) int64 {
	*p++
	return *p
}
