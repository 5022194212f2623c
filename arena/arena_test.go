package arena_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mvlc/arena"
)

var _ = Describe("Arena", func() {
	It("grows a new segment when the current one is full", func() {
		a := arena.New(64)
		a.PushSize(40, 8)
		Expect(a.Size()).To(Equal(64))

		a.PushSize(40, 8) // does not fit in the remaining 24 bytes
		Expect(a.Size()).To(BeNumerically(">", 64))
	})

	It("sizes an oversized request's own segment", func() {
		a := arena.New(64)
		a.PushSize(1000, 8)
		Expect(a.Size()).To(BeNumerically(">=", 1000))
	})

	Describe("PushObject", func() {
		It("runs destructors in reverse order on Reset", func() {
			var order []int
			a := arena.New(256)

			type cell struct{ n int }

			arena.PushObject(a, func(c *cell) { c.n = 1 }, func(c *cell) { order = append(order, 1) })
			arena.PushObject(a, func(c *cell) { c.n = 2 }, func(c *cell) { order = append(order, 2) })
			arena.PushObject(a, func(c *cell) { c.n = 3 }, func(c *cell) { order = append(order, 3) })

			a.Reset()

			Expect(order).To(Equal([]int{3, 2, 1}))
		})

		It("leaves the arena usable again after Reset", func() {
			a := arena.New(256)

			type cell struct{ n int }

			c := arena.PushObject(a, func(c *cell) { c.n = 42 }, nil)
			Expect(c.n).To(Equal(42))

			used := a.Used()
			Expect(used).To(BeNumerically(">", 0))

			a.Reset()
			Expect(a.Used()).To(Equal(0))

			arena.PushObject(a, func(c *cell) { c.n = 7 }, nil)
			Expect(a.Used()).To(Equal(used))
		})
	})
})
