package kern_test

import (
	"bytes"
	"context"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/lib"
	"github.com/sarchlab/exokern/mem/vm"
	"github.com/sarchlab/exokern/sim"
	"github.com/sarchlab/exokern/user"
)

type forkSnapshot struct {
	child        env.ID
	childStatus  env.Status
	childPages   []vm.Page
	parentPages  []vm.Page
	sharedFrames int
	audit        error
}

var _ = Describe("Copy-on-write fork", func() {
	var (
		k       *kern.Kernel
		console *bytes.Buffer

		mu         sync.Mutex
		dispatches []env.ID
		faults     []kern.FaultEvent
	)

	BeforeEach(func() {
		console = new(bytes.Buffer)
		dispatches = nil
		faults = nil

		k = kern.MakeBuilder().
			WithNumEnvs(8).
			WithNumFrames(128).
			WithConsole(console).
			Build()

		k.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			mu.Lock()
			defer mu.Unlock()

			switch item := ctx.Item.(type) {
			case kern.DispatchEvent:
				if item.Env.Type == env.User {
					dispatches = append(dispatches, item.Env.ID)
				}
			case kern.FaultEvent:
				faults = append(faults, item)
			}
		}))
	})

	It("should share every page of the parent copy-on-write", func() {
		for i := 0; i < 2; i++ {
			_, err := k.CreateEnv(user.Program("filler", user.Hello))
			Expect(err).NotTo(HaveOccurred())
		}

		var snap forkSnapshot

		parent, err := k.CreateEnv(user.Program("parent", func(u *lib.User) {
			child, err := u.Fork(func(*lib.User) {})
			if err != nil {
				return
			}

			snap.child = child
			info, _ := k.EnvInfo(child)
			snap.childStatus = info.Status
			snap.childPages, _ = k.Pages(child)
			snap.parentPages, _ = k.Pages(u.ThisEnv().ID)
			snap.audit = k.Audit()

			for _, cp := range snap.childPages {
				for _, pp := range snap.parentPages {
					if cp.VAddr == pp.VAddr && cp.Frame == pp.Frame {
						snap.sharedFrames++
					}
				}
			}

			u.Yield()
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(int(parent) & 7).To(Equal(3))

		Expect(k.Run(context.Background())).To(Succeed())

		Expect(snap.childStatus).To(Equal(env.Runnable))
		Expect(snap.audit).NotTo(HaveOccurred())
		Expect(snap.childPages).To(HaveLen(6))
		Expect(snap.sharedFrames).To(Equal(5))

		cow, private := 0, 0
		for _, p := range snap.childPages {
			switch {
			case p.Flags.HasFlags(vm.PTECOW):
				Expect(p.Flags.HasFlags(vm.PTEWritable)).To(BeFalse())
				cow++
			default:
				Expect(p.VAddr).To(Equal(vm.UXSTACKTOP - vm.PageSize))
				Expect(p.Flags).To(Equal(
					vm.PTEPresent | vm.PTEUser | vm.PTEWritable))
				private++
			}
		}
		Expect(cow).To(Equal(5))
		Expect(private).To(Equal(1))

		for _, p := range snap.parentPages {
			if p.VAddr < vm.UXSTACKTOP-vm.PageSize {
				Expect(p.Flags.HasFlags(vm.PTECOW)).To(BeTrue())
			}
		}

		i := indexOf(dispatches, parent)
		Expect(i).To(BeNumerically(">=", 0))
		Expect(dispatches[i+1]).To(Equal(snap.child))
		Expect(k.FramePool().InUse()).To(Equal(0))
	})

	It("should give writers private copies", func() {
		_, err := k.CreateEnv(user.Program("cowcheck", user.COWCheck))
		Expect(err).NotTo(HaveOccurred())

		Expect(k.Run(context.Background())).To(Succeed())

		out := console.String()
		Expect(out).To(ContainSubstring("cowcheck: child before write: ok"))
		Expect(out).To(ContainSubstring("cowcheck: child after write: ok"))
		Expect(out).To(ContainSubstring("cowcheck: parent: ok"))

		Expect(faults).To(HaveLen(1))
		Expect(faults[0].Fatal).To(BeEmpty())
		Expect(faults[0].PTE.HasFlags(vm.PTECOW)).To(BeTrue())
	})

	It("should kill an environment on a fault it cannot handle", func() {
		writer, err := k.CreateEnv(user.Program("faultwrite", user.FaultWrite))
		Expect(err).NotTo(HaveOccurred())

		Expect(k.Run(context.Background())).To(Succeed())

		Expect(console.String()).NotTo(ContainSubstring("wrote to"))
		Expect(faults).To(HaveLen(2))
		Expect(faults[1].Env).To(Equal(writer))
		Expect(faults[1].Fatal).To(ContainSubstring(
			"not a write to a copy-on-write page"))
		Expect(k.FramePool().InUse()).To(Equal(0))
	})

	It("should grow a tree of environments", func() {
		_, err := k.CreateEnv(user.Program("forktree", user.ForkTree(2)))
		Expect(err).NotTo(HaveOccurred())

		Expect(k.Run(context.Background())).To(Succeed())

		out := console.String()
		Expect(strings.Count(out, "I am '")).To(Equal(7))
		for _, name := range []string{"''", "'0'", "'1'", "'00'", "'11'"} {
			Expect(out).To(ContainSubstring("I am " + name + "\n"))
		}
		Expect(k.FramePool().InUse()).To(Equal(0))
	})
})

func indexOf(ids []env.ID, id env.ID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}

	return -1
}
