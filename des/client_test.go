package des

import (
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Client API", func() {
	ginkgo.It("defaults an event's payload to its resolved timestamp", func() {
		s := NewScheduler()
		type client struct{}
		a := &client{}
		Register(s, a)

		valueCh := make(chan any, 1)
		go func() {
			defer ginkgo.GinkgoRecover()
			v, err := Delay(s, a, 2.0)
			Expect(err).NotTo(HaveOccurred())
			valueCh <- v
		}()

		_, err := Simulate(s, 5.0)
		Expect(err).NotTo(HaveOccurred())
		Expect(<-valueCh).To(Equal(2.0))
	})

	ginkgo.It("delivers a custom payload set with WithValue", func() {
		s := NewScheduler()
		type client struct{}
		a := &client{}
		Register(s, a)

		valueCh := make(chan any, 1)
		go func() {
			defer ginkgo.GinkgoRecover()
			v, err := Delay(s, a, 1.0, WithValue("payload"))
			Expect(err).NotTo(HaveOccurred())
			valueCh <- v
		}()

		_, err := Simulate(s, 5.0)
		Expect(err).NotTo(HaveOccurred())
		Expect(<-valueCh).To(Equal("payload"))
	})

	ginkgo.It("reports Now from a non-zero StartTime", func() {
		s := NewScheduler(WithStartTime(10.0))
		Expect(Now(s)).To(Equal(10.0))
	})

	ginkgo.It("leaves a client suspended past the horizon when WithoutFinish is set", func() {
		s := NewScheduler()
		type client struct{}
		a := &client{}
		Register(s, a)

		resumed := make(chan struct{})
		go func() {
			defer ginkgo.GinkgoRecover()
			_, _ = Delay(s, a, 10.0)
			close(resumed)
		}()

		report, err := Simulate(s, 1.0, WithoutFinish())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Termination).To(Equal(TerminationDone))

		Consistently(resumed, "20ms").ShouldNot(BeClosed())

		// A's event is still parked past the horizon; queue an interrupt for
		// it and run the loop again so something is actually there to drain
		// and deliver it — Simulate does not keep running after it returns.
		Interrupt(s, a, ErrFailure)
		_, err = Simulate(s, 1.0)
		Expect(err).NotTo(HaveOccurred())

		Eventually(resumed, "200ms").Should(BeClosed())
	})
})
