package validate_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store/inmemory"
	testutils "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/utils/test"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/validate"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector/bruteforce"
)

var _ = Describe("Validator", func() {
	var (
		driver   *inmemory.Driver
		index    *bruteforce.Driver
		embedder *testutils.MockEmbedder
		generate *testutils.MockGenerate
		ctx      context.Context
	)

	newValidator := func() *validate.Validator {
		logger, _ := zap.NewDevelopment()
		return validate.NewValidator(validate.Config{
			Store:    driver,
			Vector:   index,
			Embedder: embedder,
			Generate: generate.Func(),
			Logger:   logger,
			Backoff:  time.Millisecond,
		})
	}

	// seedCanon stores a canon persona memory and indexes it.
	seedCanon := func(topic, content string, embedding []float32) *memory.Memory {
		m := memory.NewJaneDraft(topic, content, memory.Actor{Human: "editor-1"})
		m.Status = memory.StatusCanon
		_, err := driver.Put(ctx, m)
		Expect(err).NotTo(HaveOccurred())

		Expect(index.Add(ctx, vector.CollectionJane, []vector.Document{
			{ID: m.ID, Embedding: embedding, Status: "canon", UpdatedAt: m.UpdatedAt},
		})).To(Succeed())
		return m
	}

	// putDraft stores a quarantine-bound draft so links can be recorded on it.
	putDraft := func(topic, content string) *memory.Memory {
		d := memory.NewJaneDraft(topic, content, memory.Actor{Model: "test-model"})
		_, err := driver.Put(ctx, d)
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		index = bruteforce.NewDriver()
		embedder = testutils.NewMockEmbedder()
		generate = &testutils.MockGenerate{}
		ctx = context.Background()
	})

	It("passes a draft with no related canon without a judgment call", func() {
		draft := putDraft("hometown", "Jane grew up in Ohio")

		verdict := newValidator().Validate(ctx, draft)

		Expect(verdict.Consistent).To(BeTrue())
		Expect(generate.Calls()).To(BeZero())
	})

	It("flags a contradiction and records the conflicting ids", func() {
		embedder.Embeddings["Jane grew up in Ohio"] = []float32{1, 0, 0}
		embedder.Embeddings["Jane grew up in Texas"] = []float32{0.98, 0.1, 0}

		ohio := seedCanon("hometown", "Jane grew up in Ohio", []float32{1, 0, 0})
		draft := putDraft("hometown", "Jane grew up in Texas")

		generate.Responses = []string{fmt.Sprintf(
			`{"judgments": [{"memory_id": %q, "relation": "contradicts"}]}`, ohio.ID)}

		verdict := newValidator().Validate(ctx, draft)

		Expect(verdict.Consistent).To(BeFalse())
		Expect(verdict.Conflicts).To(ConsistOf(ohio.ID))
		Expect(verdict.Reason).To(ContainSubstring(ohio.ID))

		// The contradicts link survives on the draft regardless of verdict.
		got, err := driver.Get(ctx, draft.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Jane.Contradicts).To(ConsistOf(ohio.ID))
	})

	It("records supporting links on a consistent verdict", func() {
		garden := seedCanon("hobbies", "Jane keeps a vegetable garden", []float32{1, 0, 0})
		draft := putDraft("hobbies", "Jane grows tomatoes every summer")

		generate.Responses = []string{fmt.Sprintf(
			`{"judgments": [{"memory_id": %q, "relation": "supports"}]}`, garden.ID)}

		verdict := newValidator().Validate(ctx, draft)

		Expect(verdict.Consistent).To(BeTrue())
		Expect(verdict.Supports).To(ConsistOf(garden.ID))

		got, err := driver.Get(ctx, draft.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Jane.Supports).To(ConsistOf(garden.ID))
	})

	It("accepts fenced JSON and ignores unknown ids and relations", func() {
		known := seedCanon("hometown", "Jane grew up in Ohio", []float32{1, 0, 0})
		draft := putDraft("hometown", "Jane was raised in the Midwest")

		generate.Responses = []string{fmt.Sprintf("```json\n"+
			`{"judgments": [
				{"memory_id": %q, "relation": "supports"},
				{"memory_id": "never-seen", "relation": "contradicts"},
				{"memory_id": %q, "relation": "sideways"}
			]}`+"\n```", known.ID, known.ID)}

		verdict := newValidator().Validate(ctx, draft)

		Expect(verdict.Consistent).To(BeTrue())
		Expect(verdict.Supports).To(ConsistOf(known.ID))
		Expect(verdict.Conflicts).To(BeEmpty())
	})

	It("retries transient judgment failures before succeeding", func() {
		known := seedCanon("hometown", "Jane grew up in Ohio", []float32{1, 0, 0})
		draft := putDraft("hometown", "Jane was raised in the Midwest")

		generate.FailFirst = 1
		generate.Responses = []string{fmt.Sprintf(
			`{"judgments": [{"memory_id": %q, "relation": "neutral"}]}`, known.ID)}

		verdict := newValidator().Validate(ctx, draft)

		Expect(verdict.Consistent).To(BeTrue())
		Expect(generate.Calls()).To(Equal(2))
	})

	It("forces an inconsistent verdict when retries are exhausted", func() {
		seedCanon("hometown", "Jane grew up in Ohio", []float32{1, 0, 0})
		draft := putDraft("hometown", "Jane was raised in the Midwest")

		generate.FailFirst = 10

		verdict := newValidator().Validate(ctx, draft)

		Expect(verdict.Consistent).To(BeFalse())
		Expect(verdict.Reason).To(ContainSubstring("judgment unavailable"))
		Expect(generate.Calls()).To(Equal(3))
	})

	It("forces an inconsistent verdict when the embedding step fails", func() {
		embedder.FailAll = true
		draft := putDraft("hometown", "Jane grew up in Ohio")

		verdict := newValidator().Validate(ctx, draft)

		Expect(verdict.Consistent).To(BeFalse())
	})

	It("never judges a draft against itself", func() {
		draft := putDraft("hometown", "Jane grew up in Ohio")
		Expect(index.Add(ctx, vector.CollectionJane, []vector.Document{
			{ID: draft.ID, Embedding: []float32{0.1, 0.2, 0.3}, Status: "draft"},
		})).To(Succeed())

		verdict := newValidator().Validate(ctx, draft)

		Expect(verdict.Consistent).To(BeTrue())
		Expect(generate.Calls()).To(BeZero())
	})

	Describe("ValidateClient", func() {
		It("judges only against the client's own collection", func() {
			// Canon for a different client must not participate.
			other := memory.NewClientDraft("c2", "Lives alone", memory.Actor{Human: "editor-1"})
			other.Status = memory.StatusCanon
			_, err := driver.Put(ctx, other)
			Expect(err).NotTo(HaveOccurred())
			Expect(index.Add(ctx, vector.ClientCollection("c2"), []vector.Document{
				{ID: other.ID, Embedding: []float32{0.1, 0.2, 0.3}, Status: "canon"},
			})).To(Succeed())

			prior := memory.NewClientDraft("c1", "Has never been married", memory.Actor{Human: "editor-1"})
			prior.Status = memory.StatusCanon
			_, err = driver.Put(ctx, prior)
			Expect(err).NotTo(HaveOccurred())
			Expect(index.Add(ctx, vector.ClientCollection("c1"), []vector.Document{
				{ID: prior.ID, Embedding: []float32{0.1, 0.2, 0.3}, Status: "canon"},
			})).To(Succeed())

			draft := memory.NewClientDraft("c1", "Mentioned an ex-wife", memory.Actor{Model: "test-model"})
			_, err = driver.Put(ctx, draft)
			Expect(err).NotTo(HaveOccurred())

			generate.Responses = []string{fmt.Sprintf(
				`{"judgments": [{"memory_id": %q, "relation": "contradicts"}]}`, prior.ID)}

			verdict := newValidator().ValidateClient(ctx, draft)

			Expect(verdict.Consistent).To(BeFalse())
			Expect(verdict.Conflicts).To(ConsistOf(prior.ID))
			Expect(generate.Contexts).To(HaveLen(1))
			Expect(generate.Contexts[0]).NotTo(ContainSubstring("Lives alone"))
		})

		It("rejects a client draft without a client id", func() {
			draft := memory.NewClientDraft("", "content", memory.Actor{})

			verdict := newValidator().ValidateClient(ctx, draft)

			Expect(verdict.Consistent).To(BeFalse())
			Expect(verdict.Reason).To(ContainSubstring("client id"))
		})
	})
})
