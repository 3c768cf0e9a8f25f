package memory_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
)

var _ = Describe("Kind", func() {
	It("accepts the closed set of kinds", func() {
		Expect(memory.KindJane.Valid()).To(BeTrue())
		Expect(memory.KindClient.Valid()).To(BeTrue())
		Expect(memory.KindKnowledge.Valid()).To(BeTrue())
	})

	It("rejects unknown kinds", func() {
		Expect(memory.Kind("episodic").Valid()).To(BeFalse())
		Expect(memory.Kind("").Valid()).To(BeFalse())
	})
})

var _ = Describe("Constructors", func() {
	It("builds persona drafts in draft status with the topic set", func() {
		m := memory.NewJaneDraft("hometown", "Jane grew up in Ohio", memory.Actor{Model: "test-model"})

		Expect(m.ID).NotTo(BeEmpty())
		Expect(m.Kind).To(Equal(memory.KindJane))
		Expect(m.Status).To(Equal(memory.StatusDraft))
		Expect(m.Jane).NotTo(BeNil())
		Expect(m.Topic()).To(Equal("hometown"))
		Expect(m.GeneratedBy.Model).To(Equal("test-model"))
	})

	It("builds client drafts scoped to a client id", func() {
		m := memory.NewClientDraft("c1", "Client mentioned a brother", memory.Actor{Model: "test-model"})

		Expect(m.Kind).To(Equal(memory.KindClient))
		Expect(m.Status).To(Equal(memory.StatusDraft))
		Expect(m.ClientID()).To(Equal("c1"))
	})

	It("builds knowledge chunks born directly in canon", func() {
		m := memory.NewKnowledgeChunk("cbt-manual.pdf", 12, "Grounding techniques for panic", []float32{0.1, 0.2})

		Expect(m.Kind).To(Equal(memory.KindKnowledge))
		Expect(m.Status).To(Equal(memory.StatusCanon))
		Expect(m.SourceDocument).To(Equal("cbt-manual.pdf"))
		Expect(m.Knowledge.PageNumber).To(Equal(12))
		Expect(m.Knowledge.Embedding).To(Equal([]float32{0.1, 0.2}))
	})

	It("assigns a distinct id per draft", func() {
		a := memory.NewJaneDraft("t", "a", memory.Actor{})
		b := memory.NewJaneDraft("t", "b", memory.Actor{})
		Expect(a.ID).NotTo(Equal(b.ID))
	})
})

var _ = Describe("Lifecycle state machine", func() {
	DescribeTable("legal edges",
		func(from, to memory.Status, want bool) {
			Expect(memory.CanTransition(from, to)).To(Equal(want))
		},
		Entry("draft to quarantined", memory.StatusDraft, memory.StatusQuarantined, true),
		Entry("draft to deleted", memory.StatusDraft, memory.StatusDeleted, true),
		Entry("draft straight to canon is illegal", memory.StatusDraft, memory.StatusCanon, false),
		Entry("quarantined to canon", memory.StatusQuarantined, memory.StatusCanon, true),
		Entry("quarantined to human review", memory.StatusQuarantined, memory.StatusHumanReview, true),
		Entry("quarantined to deleted", memory.StatusQuarantined, memory.StatusDeleted, true),
		Entry("quarantined back to draft is illegal", memory.StatusQuarantined, memory.StatusDraft, false),
		Entry("canon to deleted", memory.StatusCanon, memory.StatusDeleted, true),
		Entry("canon back to quarantined is illegal", memory.StatusCanon, memory.StatusQuarantined, false),
		Entry("human review to canon", memory.StatusHumanReview, memory.StatusCanon, true),
		Entry("human review to deleted", memory.StatusHumanReview, memory.StatusDeleted, true),
		Entry("deleted is terminal", memory.StatusDeleted, memory.StatusDraft, false),
		Entry("deleted never resurrects to canon", memory.StatusDeleted, memory.StatusCanon, false),
	)

	It("requires a human only when leaving human review", func() {
		Expect(memory.HumanOnly(memory.StatusHumanReview)).To(BeTrue())
		Expect(memory.HumanOnly(memory.StatusQuarantined)).To(BeFalse())
		Expect(memory.HumanOnly(memory.StatusDraft)).To(BeFalse())
	})

	It("treats canon, human review and deleted as terminal for submissions", func() {
		Expect(memory.StatusCanon.Terminal()).To(BeTrue())
		Expect(memory.StatusHumanReview.Terminal()).To(BeTrue())
		Expect(memory.StatusDeleted.Terminal()).To(BeTrue())
		Expect(memory.StatusDraft.Terminal()).To(BeFalse())
		Expect(memory.StatusQuarantined.Terminal()).To(BeFalse())
	})
})

var _ = Describe("SelfCites", func() {
	It("detects a memory citing itself in contradicts", func() {
		m := memory.NewJaneDraft("t", "c", memory.Actor{})
		m.Jane.Contradicts = []string{m.ID}
		Expect(m.SelfCites()).To(BeTrue())
	})

	It("detects a memory citing itself in supports", func() {
		m := memory.NewJaneDraft("t", "c", memory.Actor{})
		m.Jane.Supports = []string{"other", m.ID}
		Expect(m.SelfCites()).To(BeTrue())
	})

	It("accepts references to other memories", func() {
		m := memory.NewJaneDraft("t", "c", memory.Actor{})
		m.Jane.Contradicts = []string{"other-a"}
		m.Jane.Supports = []string{"other-b"}
		Expect(m.SelfCites()).To(BeFalse())
	})
})

var _ = Describe("Clone", func() {
	It("deep-copies facet slices and maps", func() {
		m := memory.NewJaneDraft("hometown", "content", memory.Actor{})
		m.Jane.Contradicts = []string{"x"}
		m.Jane.Detail = map[string]any{"confidence": 0.8}

		clone := m.Clone()
		clone.Jane.Contradicts[0] = "mutated"
		clone.Jane.Detail["confidence"] = 0.1

		Expect(m.Jane.Contradicts[0]).To(Equal("x"))
		Expect(m.Jane.Detail["confidence"]).To(Equal(0.8))
	})

	It("deep-copies client sessions", func() {
		m := memory.NewClientDraft("c1", "content", memory.Actor{})
		m.Client.Sessions = []string{"s1"}

		clone := m.Clone()
		clone.Client.Sessions[0] = "mutated"

		Expect(m.Client.Sessions[0]).To(Equal("s1"))
	})

	It("returns nil for a nil receiver", func() {
		var m *memory.Memory
		Expect(m.Clone()).To(BeNil())
	})
})

var _ = Describe("AuditEntry", func() {
	It("records creation with an empty from status", func() {
		now := time.Now().UTC()
		entry := memory.NewAuditEntry("m1", "", memory.StatusDraft, memory.SystemActor, "created", now)

		Expect(entry.EntryID).NotTo(BeEmpty())
		Expect(entry.MemoryID).To(Equal("m1"))
		Expect(entry.FromStatus).To(BeEmpty())
		Expect(entry.ToStatus).To(Equal(memory.StatusDraft))
		Expect(entry.Timestamp).To(Equal(now))
	})

	It("assigns sortable entry ids in timestamp order", func() {
		earlier := memory.NewAuditEntry("m1", "", memory.StatusDraft, memory.SystemActor, "", time.Now().UTC())
		later := memory.NewAuditEntry("m1", memory.StatusDraft, memory.StatusQuarantined, memory.SystemActor, "", time.Now().UTC().Add(time.Second))

		Expect(later.EntryID > earlier.EntryID).To(BeTrue())
	})
})
