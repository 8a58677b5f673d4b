package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/sim"
)

var _ = Describe("EventCounter", func() {
	var c *EventCounter

	BeforeEach(func() {
		c = NewEventCounter()
	})

	It("should count per position and per environment", func() {
		dispatch := kern.DispatchEvent{Env: env.Info{ID: 0x1001}}
		c.Func(sim.HookCtx{Pos: kern.HookPosDispatch, Item: dispatch})
		c.Func(sim.HookCtx{Pos: kern.HookPosDispatch, Item: dispatch})
		c.Func(sim.HookCtx{
			Pos:  kern.HookPosPageFault,
			Item: kern.FaultEvent{Env: 0x1002},
		})

		Expect(c.Count("Dispatch")).To(Equal(uint64(2)))
		Expect(c.Count("PageFault")).To(Equal(uint64(1)))
		Expect(c.Count("EnvFree")).To(BeZero())
		Expect(c.Dispatches(0x1001)).To(Equal(uint64(2)))
		Expect(c.Faults(0x1002)).To(Equal(uint64(1)))
		Expect(c.PosNames()).To(Equal([]string{"Dispatch", "PageFault"}))
		Expect(c.Snapshot()).To(HaveKeyWithValue("Dispatch", uint64(2)))
	})
})
