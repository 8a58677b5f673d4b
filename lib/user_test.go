package lib

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
	"go.uber.org/mock/gomock"
)

var _ = Describe("User", func() {
	const me = env.ID(0x1001)

	var (
		mockCtrl *gomock.Controller
		sys      *MockSyscalls
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sys = NewMockSyscalls(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run the body and exit", func() {
		ran := false

		gomock.InOrder(
			sys.EXPECT().GetEnvID().Return(me),
			sys.EXPECT().EnvInfo(me).Return(env.Info{ID: me}, nil),
			sys.EXPECT().EnvDestroy(env.ID(0)),
		)

		entry := Main(func(u *User) {
			Expect(u.ThisEnv().ID).To(Equal(me))
			Expect(u.Sys()).To(BeIdenticalTo(sys))
			ran = true
		})
		entry(sys, kern.Trapframe{ESP: vm.USTACKTOP})

		Expect(ran).To(BeTrue())
	})

	It("should load and store bytes", func() {
		u := &User{sys: sys}

		sys.EXPECT().Write(vm.UTEXT, []byte{7})
		sys.EXPECT().Read(vm.UTEXT+1, gomock.Any()).
			DoAndReturn(func(_ uint64, buf []byte) error {
				buf[0] = 9
				return nil
			})

		u.Store(vm.UTEXT, 7)

		Expect(u.Load(vm.UTEXT + 1)).To(Equal(byte(9)))
	})

	It("should panic on a failed access", func() {
		u := &User{sys: sys, thisenv: env.Info{ID: me}}

		gomock.InOrder(
			sys.EXPECT().Read(vm.UTOP, gomock.Any()).Return(kern.ErrFault),
			sys.EXPECT().Cputs(gomock.Any()).Do(func(s string) {
				Expect(s).To(Equal(
					"[00001001] user panic: load 0xeec00000: " +
						"segmentation fault\n"))
			}),
			sys.EXPECT().EnvDestroy(env.ID(0)),
		)

		u.Load(vm.UTOP)
	})

	It("should print", func() {
		u := &User{sys: sys}

		sys.EXPECT().Cputs("hello 3\n")

		u.Printf("hello %d\n", 3)
	})
})
