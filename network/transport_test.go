package network_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jeycin/Graphite/network"
)

var _ = Describe("Transport", func() {
	It("delivers a payload sent between two ranks", func() {
		tr := network.NewTransport(2, 4)
		defer tr.Close()

		a := network.NewTileEndpoint(tr, 0)
		b := network.NewTileEndpoint(tr, 1)

		done := make(chan error, 1)
		go func() {
			done <- a.SendW(context.Background(), 1, []byte("hello"))
		}()

		payload, err := b.RecvW(context.Background(), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(Equal([]byte("hello")))
		Expect(<-done).NotTo(HaveOccurred())
	})

	It("keeps FIFO order between a single pair of ranks", func() {
		tr := network.NewTransport(2, 8)
		defer tr.Close()

		a := network.NewTileEndpoint(tr, 0)
		b := network.NewTileEndpoint(tr, 1)

		for i := 0; i < 5; i++ {
			Expect(a.SendW(context.Background(), 1, []byte{byte(i)})).To(Succeed())
		}

		for i := 0; i < 5; i++ {
			payload, err := b.RecvW(context.Background(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload).To(Equal([]byte{byte(i)}))
		}
	})

	It("reserves the rank past the last tile for the spawner", func() {
		tr := network.NewTransport(3, 1)
		defer tr.Close()

		Expect(network.SpawnerRank(3)).To(Equal(3))
		Expect(tr.NumRanks()).To(Equal(4))
	})

	It("rejects an out-of-range rank", func() {
		tr := network.NewTransport(2, 1)
		defer tr.Close()

		a := network.NewTileEndpoint(tr, 0)
		err := a.SendW(context.Background(), 99, []byte("x"))
		Expect(err).To(HaveOccurred())
	})

	It("applies backpressure once a channel's capacity is full", func() {
		tr := network.NewTransport(2, 1)
		defer tr.Close()

		a := network.NewTileEndpoint(tr, 0)
		Expect(a.SendW(context.Background(), 1, []byte("first"))).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := a.SendW(ctx, 1, []byte("second"))
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("releases a blocked receiver with a terminal status on teardown", func() {
		tr := network.NewTransport(2, 1)
		b := network.NewTileEndpoint(tr, 1)

		result := make(chan error, 1)
		go func() {
			_, err := b.RecvW(context.Background(), 0)
			result <- err
		}()

		time.Sleep(10 * time.Millisecond)
		tr.Close()

		Eventually(result).Should(Receive(Equal(network.ErrClosed)))
	})
})
