package user

import (
	"bytes"
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/exokern/kern"
)

var _ = Describe("Programs", func() {
	var (
		k       *kern.Kernel
		console *bytes.Buffer
	)

	BeforeEach(func() {
		console = new(bytes.Buffer)
		k = kern.MakeBuilder().
			WithNumEnvs(16).
			WithNumFrames(128).
			WithConsole(console).
			Build()
	})

	boot := func(names ...string) {
		for _, name := range names {
			prog, err := Lookup(name)
			Expect(err).NotTo(HaveOccurred())

			_, err = k.CreateEnv(prog)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(k.Run(context.Background())).To(Succeed())
	}

	It("should list the programs", func() {
		Expect(Names()).To(Equal([]string{
			"cowcheck", "faultread", "faultwrite",
			"forktree", "hello", "yield",
		}))
	})

	It("should not find unknown programs", func() {
		_, err := Lookup("nope")

		Expect(err).To(HaveOccurred())
	})

	It("should say hello", func() {
		boot("hello")

		Expect(console.String()).To(HavePrefix(
			"hello, world\ni am environment 00001001\n"))
		Expect(console.String()).To(ContainSubstring(kern.MsgNoRunnableEnvs))
	})

	It("should interleave yielding programs", func() {
		boot("yield", "yield")

		lines := strings.Split(console.String(), "\n")
		Expect(lines[0]).To(Equal("Hello, I am environment 00001001."))
		Expect(lines[1]).To(Equal("Hello, I am environment 00001002."))
		Expect(lines[2]).To(Equal("Back in environment 00001001, iteration 0."))
		Expect(lines[3]).To(Equal("Back in environment 00001002, iteration 0."))
		Expect(console.String()).To(ContainSubstring(
			"All done in environment 00001002."))
	})

	It("should not let a faulting program stop the others", func() {
		boot("faultread", "hello")

		out := console.String()
		Expect(out).NotTo(ContainSubstring("I read"))
		Expect(out).To(ContainSubstring("user fault va 00000000"))
		Expect(out).To(ContainSubstring("hello, world"))
	})

	It("should fork a tree", func() {
		boot("forktree")

		Expect(strings.Count(console.String(), "I am '")).To(Equal(15))
		Expect(k.FramePool().InUse()).To(BeZero())
	})
})
