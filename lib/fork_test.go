package lib

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Fork", func() {
	const (
		parent = env.ID(0x1003)
		child  = env.ID(0x1004)
	)

	var (
		mockCtrl *gomock.Controller
		sys      *MockSyscalls
		vpt      *MockView
		u        *User
		rw       vm.PTE
		cow      vm.PTE
		xstack   uint64
		stack    uint64
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sys = NewMockSyscalls(mockCtrl)
		vpt = NewMockView(mockCtrl)

		u = &User{
			sys: sys,
			tf:  kern.Trapframe{ESP: vm.USTACKTOP},
			thisenv: env.Info{
				ID:     parent,
				Status: env.Running,
				Break:  vm.UTEXT + 3*vm.PageSize,
			},
		}

		rw = vm.PTEPresent | vm.PTEUser | vm.PTEWritable
		cow = vm.PTEPresent | vm.PTEUser | vm.PTECOW
		xstack = vm.UXSTACKTOP - vm.PageSize
		stack = vm.USTACKTOP - vm.PageSize
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	expectHandlerSetup := func() {
		gomock.InOrder(
			sys.EXPECT().PageAlloc(env.ID(0), xstack, rw),
			sys.EXPECT().EnvSetPgfaultUpcall(env.ID(0), gomock.Any()),
		)
	}

	It("should return the error if the child cannot be created", func() {
		expectHandlerSetup()
		sys.EXPECT().ExoFork().Return(env.ID(0), kern.ErrNoFreeEnv)

		id, err := u.Fork(func(*User) {
			Fail("child must not run")
		})

		Expect(id).To(Equal(env.ID(0)))
		Expect(err).To(MatchError(kern.ErrNoFreeEnv))
	})

	It("should duplicate the address space and start the child", func() {
		data0 := vm.UTEXT
		data1 := vm.UTEXT + vm.PageSize
		data2 := vm.UTEXT + 2*vm.PageSize

		vpt.EXPECT().Lookup(vm.PageNum(data0)).Return(rw, true).AnyTimes()
		vpt.EXPECT().Lookup(vm.PageNum(data1)).
			Return(vm.PTEPresent|vm.PTEUser, true).AnyTimes()
		vpt.EXPECT().Lookup(vm.PageNum(data2)).
			Return(vm.PTE(0), false).AnyTimes()
		vpt.EXPECT().Lookup(vm.PageNum(stack)).Return(rw, true).AnyTimes()

		var childTF kern.Trapframe

		expectHandlerSetup()
		gomock.InOrder(
			sys.EXPECT().ExoFork().Return(child, nil),
			sys.EXPECT().VPT().Return(vpt),
			sys.EXPECT().PageMap(env.ID(0), data0, child, data0, cow),
			sys.EXPECT().PageMap(env.ID(0), data0, env.ID(0), data0, cow),
			sys.EXPECT().PageMap(env.ID(0), data1, child, data1,
				vm.PTEPresent|vm.PTEUser),
			sys.EXPECT().PageMap(env.ID(0), stack, child, stack, cow),
			sys.EXPECT().PageMap(env.ID(0), stack, env.ID(0), stack, cow),
			sys.EXPECT().PageAlloc(child, xstack, rw),
			sys.EXPECT().EnvSetPgfaultUpcall(child, gomock.Any()),
			sys.EXPECT().EnvSetTrapframe(child, gomock.Any()).
				Do(func(_ env.ID, tf kern.Trapframe) {
					childTF = tf
				}),
			sys.EXPECT().EnvSetStatus(child, env.Runnable),
		)

		var cu *User
		id, err := u.Fork(func(c *User) {
			cu = c
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(child))
		Expect(childTF.Ret).To(Equal(int64(0)))
		Expect(childTF.ESP).To(Equal(vm.USTACKTOP))
		Expect(childTF.Entry).NotTo(BeNil())
		Expect(cu).To(BeNil())

		childSys := NewMockSyscalls(mockCtrl)
		gomock.InOrder(
			childSys.EXPECT().GetEnvID().Return(child),
			childSys.EXPECT().EnvInfo(child).Return(env.Info{
				ID:       child,
				ParentID: parent,
				Status:   env.Running,
				Break:    u.thisenv.Break,
			}, nil),
			childSys.EXPECT().EnvDestroy(env.ID(0)),
		)

		childTF.Entry(childSys, childTF)

		Expect(cu).NotTo(BeNil())
		Expect(cu.ThisEnv().ID).To(Equal(child))
		Expect(cu.ThisEnv().ParentID).To(Equal(parent))
		Expect(u.ThisEnv().ID).To(Equal(parent))
		Expect(cu.handler).NotTo(BeNil())
	})

	It("should not set up the handler twice", func() {
		u.handler = pgfault
		u.thisenv.Break = vm.UTEXT

		vpt.EXPECT().Lookup(vm.PageNum(stack)).Return(rw, true).AnyTimes()

		gomock.InOrder(
			sys.EXPECT().ExoFork().Return(child, nil),
			sys.EXPECT().VPT().Return(vpt),
			sys.EXPECT().PageMap(env.ID(0), stack, child, stack, cow),
			sys.EXPECT().PageMap(env.ID(0), stack, env.ID(0), stack, cow),
			sys.EXPECT().PageAlloc(child, xstack, rw),
			sys.EXPECT().EnvSetPgfaultUpcall(child, gomock.Any()),
			sys.EXPECT().EnvSetTrapframe(child, gomock.Any()),
			sys.EXPECT().EnvSetStatus(child, env.Runnable),
		)

		_, err := u.Fork(func(*User) {})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should destroy the child and itself if the child cannot get an "+
		"exception stack", func() {
		u.handler = pgfault
		u.thisenv.Break = vm.UTEXT

		vpt.EXPECT().Lookup(vm.PageNum(stack)).Return(rw, true).AnyTimes()

		gomock.InOrder(
			sys.EXPECT().ExoFork().Return(child, nil),
			sys.EXPECT().VPT().Return(vpt),
			sys.EXPECT().PageMap(env.ID(0), stack, child, stack, cow),
			sys.EXPECT().PageMap(env.ID(0), stack, env.ID(0), stack, cow),
			sys.EXPECT().PageAlloc(child, xstack, rw).Return(kern.ErrNoMem),
			sys.EXPECT().EnvDestroy(child),
			sys.EXPECT().Cputs(gomock.Any()).Do(func(s string) {
				Expect(s).To(ContainSubstring("user panic"))
				Expect(s).To(ContainSubstring("exception stack"))
			}),
			sys.EXPECT().EnvDestroy(env.ID(0)),
		)

		id, err := u.Fork(func(*User) {})

		Expect(id).To(Equal(env.ID(0)))
		Expect(err).To(HaveOccurred())
	})

	It("should report a child it could not destroy", func() {
		u.handler = pgfault
		u.thisenv.Break = vm.UTEXT

		vpt.EXPECT().Lookup(vm.PageNum(stack)).Return(rw, true).AnyTimes()

		gomock.InOrder(
			sys.EXPECT().ExoFork().Return(child, nil),
			sys.EXPECT().VPT().Return(vpt),
			sys.EXPECT().PageMap(env.ID(0), stack, child, stack, cow),
			sys.EXPECT().PageMap(env.ID(0), stack, env.ID(0), stack, cow),
			sys.EXPECT().PageAlloc(child, xstack, rw).Return(kern.ErrNoMem),
			sys.EXPECT().EnvDestroy(child).Return(kern.ErrBadEnv),
			sys.EXPECT().Cputs(gomock.Any()).Do(func(s string) {
				Expect(s).To(ContainSubstring("destroying child " +
					child.String()))
				Expect(s).To(ContainSubstring(kern.ErrBadEnv.Error()))
			}),
			sys.EXPECT().EnvDestroy(env.ID(0)),
		)

		_, err := u.Fork(func(*User) {})

		Expect(err).To(HaveOccurred())
	})

	It("should give up on a page it cannot share", func() {
		u.handler = pgfault
		u.thisenv.Break = vm.UTEXT + vm.PageSize

		vpt.EXPECT().Lookup(vm.PageNum(vm.UTEXT)).
			Return(vm.PTEPresent|vm.PTEWritable, true).AnyTimes()

		gomock.InOrder(
			sys.EXPECT().ExoFork().Return(child, nil),
			sys.EXPECT().VPT().Return(vpt),
			sys.EXPECT().EnvDestroy(child),
			sys.EXPECT().Cputs(gomock.Any()),
			sys.EXPECT().EnvDestroy(env.ID(0)),
		)

		_, err := u.Fork(func(*User) {})

		Expect(err).To(HaveOccurred())
	})
})
