package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("creates a non-nil publisher", func() {
		p := nop.NewPublisher()
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilTransitionEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishTransition(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilTransitionEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishTransition(context.Background(), &eventstream.MemoryTransitionedEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		p := nop.NewPublisher()
		Expect(p.Close()).To(Succeed())
	})
})
