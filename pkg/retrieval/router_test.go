package retrieval_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/retrieval"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store/inmemory"
	testutils "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/utils/test"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
)

// putCanonJane stores a persona memory born directly in canon, the way
// human-authored foundation content enters the store.
func putCanonJane(ctx context.Context, driver *inmemory.Driver, topic, content string) *memory.Memory {
	m := memory.NewJaneDraft(topic, content, memory.Actor{Human: "editor-1"})
	m.Status = memory.StatusCanon
	_, err := driver.Put(ctx, m)
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Router", func() {
	var (
		driver   *inmemory.Driver
		vec      *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		router   *retrieval.Router
		ctx      context.Context
	)

	newRouter := func(cache *retrieval.Cache) *retrieval.Router {
		logger, _ := zap.NewDevelopment()
		return retrieval.NewRouter(retrieval.Config{
			Store:           driver,
			Vector:          vec,
			Embedder:        embedder,
			Cache:           cache,
			Logger:          logger,
			SubQueryTimeout: 100 * time.Millisecond,
		})
	}

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		vec = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		router = newRouter(nil)
		ctx = context.Background()
	})

	Describe("exact topic matches", func() {
		It("returns canon memories whose topic appears in the turn with full score", func() {
			putCanonJane(ctx, driver, "hometown", "Jane grew up in Columbus, Ohio")
			putCanonJane(ctx, driver, "siblings", "Jane has two older brothers")

			bundle := router.Retrieve(ctx, retrieval.Query{Text: "tell me about your hometown"})

			Expect(bundle.Empty).To(BeFalse())
			Expect(bundle.Items).To(HaveLen(1))
			Expect(bundle.Items[0].Score).To(Equal(float32(1)))
			Expect(bundle.Items[0].Source).To(Equal(retrieval.BucketJane))
			Expect(bundle.Items[0].Memory.Content).To(ContainSubstring("Columbus"))
		})
	})

	Describe("similarity lookups", func() {
		It("keeps only hits that are still canon in the store", func() {
			canon := putCanonJane(ctx, driver, "career", "Jane worked as a librarian")
			retired := putCanonJane(ctx, driver, "old-career", "Jane worked retail")
			_, err := driver.Transition(ctx, retired.ID, memory.StatusDeleted, memory.SystemActor, "superseded", 1)
			Expect(err).NotTo(HaveOccurred())

			vec.Results[vector.CollectionJane] = []vector.QueryResult{
				{Document: vector.Document{ID: canon.ID, Status: "canon"}, Score: 0.8},
				// Index entry lags the delete; the store read filters it.
				{Document: vector.Document{ID: retired.ID, Status: "canon"}, Score: 0.7},
				// Entries the index already knows are not canon never hit the store.
				{Document: vector.Document{ID: "draft-entry", Status: "draft"}, Score: 0.9},
			}

			bundle := router.Retrieve(ctx, retrieval.Query{Text: "do you enjoy working"})

			Expect(bundle.Items).To(HaveLen(1))
			Expect(bundle.Items[0].Memory.ID).To(Equal(canon.ID))
		})

		It("collapses near-duplicate hits to the highest-scoring one", func() {
			a := putCanonJane(ctx, driver, "winter-a", "Jane loves Ohio winters")
			b := putCanonJane(ctx, driver, "winter-b", "Jane enjoys the winters in Ohio")

			vec.Results[vector.CollectionJane] = []vector.QueryResult{
				{Document: vector.Document{ID: a.ID, Status: "canon", Embedding: []float32{1, 0, 0}}, Score: 0.9},
				{Document: vector.Document{ID: b.ID, Status: "canon", Embedding: []float32{0.99, 0.14, 0}}, Score: 0.85},
			}

			bundle := router.Retrieve(ctx, retrieval.Query{Text: "do you enjoy snow"})

			Expect(bundle.Items).To(HaveLen(1))
			Expect(bundle.Items[0].Memory.ID).To(Equal(a.ID))
		})

		It("keeps distinct hits below the duplicate threshold", func() {
			a := putCanonJane(ctx, driver, "topic-a", "Jane loves winters")
			b := putCanonJane(ctx, driver, "topic-b", "Jane dislikes mornings")

			vec.Results[vector.CollectionJane] = []vector.QueryResult{
				{Document: vector.Document{ID: a.ID, Status: "canon", Embedding: []float32{1, 0, 0}}, Score: 0.9},
				{Document: vector.Document{ID: b.ID, Status: "canon", Embedding: []float32{0, 1, 0}}, Score: 0.85},
			}

			bundle := router.Retrieve(ctx, retrieval.Query{Text: "do you enjoy snow"})

			Expect(bundle.Items).To(HaveLen(2))
		})

		It("scopes client history to the client's own collection", func() {
			disclosure := memory.NewClientDraft("c1", "Has a younger brother in Texas", memory.Actor{Human: "editor-1"})
			disclosure.Status = memory.StatusCanon
			_, err := driver.Put(ctx, disclosure)
			Expect(err).NotTo(HaveOccurred())

			vec.Results[vector.ClientCollection("c1")] = []vector.QueryResult{
				{Document: vector.Document{ID: disclosure.ID, Status: "canon"}, Score: 0.7},
			}

			bundle := router.Retrieve(ctx, retrieval.Query{
				Text:     "i mentioned my brother last session",
				ClientID: "c1",
			})

			Expect(bundle.Items).To(HaveLen(1))
			Expect(bundle.Items[0].Source).To(Equal(retrieval.BucketClientHistory))
		})

		It("sanitizes knowledge hits before they enter the bundle", func() {
			chunk := memory.NewKnowledgeChunk("manual.pdf", 3,
				"For panic exercises contact Dr. Alvarez at alvarez@clinic.org", []float32{1, 0})
			_, err := driver.Put(ctx, chunk)
			Expect(err).NotTo(HaveOccurred())

			vec.Results[vector.CollectionKnowledge] = []vector.QueryResult{
				{Document: vector.Document{ID: chunk.ID, Status: "canon"}, Score: 0.8},
			}

			bundle := router.Retrieve(ctx, retrieval.Query{Text: "coping technique"})

			Expect(bundle.Items).To(HaveLen(1))
			Expect(bundle.Items[0].Memory.Content).To(ContainSubstring("[NAME]"))
			Expect(bundle.Items[0].Memory.Content).To(ContainSubstring("[EMAIL]"))
			Expect(bundle.Items[0].Memory.Content).NotTo(ContainSubstring("Alvarez"))
		})
	})

	Describe("degradation", func() {
		It("flags the bundle degraded when a sub-query misses its deadline", func() {
			canon := putCanonJane(ctx, driver, "hobbies", "Jane keeps a garden")
			vec.Results[vector.CollectionJane] = []vector.QueryResult{
				{Document: vector.Document{ID: canon.ID, Status: "canon"}, Score: 0.8},
			}
			vec.Delays[vector.CollectionKnowledge] = time.Second

			bundle := router.Retrieve(ctx, retrieval.Query{Text: "do you have a coping technique"})

			Expect(bundle.Degraded).To(BeTrue())
			Expect(bundle.Empty).To(BeFalse())
			Expect(bundle.Items).To(HaveLen(1))
			Expect(bundle.Items[0].Memory.ID).To(Equal(canon.ID))
		})

		It("flags the bundle empty when every sub-query fails", func() {
			embedder.FailAll = true

			bundle := router.Retrieve(ctx, retrieval.Query{Text: "coping technique"})

			Expect(bundle.Empty).To(BeTrue())
			Expect(bundle.Degraded).To(BeTrue())
			Expect(bundle.Items).To(BeEmpty())
		})
	})

	Describe("hot-context cache", func() {
		It("serves repeat windows from the cache until invalidated", func() {
			cache, err := retrieval.NewCache()
			Expect(err).NotTo(HaveOccurred())
			defer cache.Close()
			router = newRouter(cache)

			putCanonJane(ctx, driver, "hometown", "Jane grew up in Columbus, Ohio")

			q := retrieval.Query{Text: "tell me about your hometown", Window: []string{"hi", "hello"}}

			first := router.Retrieve(ctx, q)
			Expect(first.Items).To(HaveLen(1))
			cache.Wait()

			// New canon content is invisible until the cache is dropped.
			putCanonJane(ctx, driver, "hometown", "Jane grew up near Columbus, Ohio")

			second := router.Retrieve(ctx, q)
			Expect(second).To(BeIdenticalTo(first))

			router.InvalidateCache()

			third := router.Retrieve(ctx, q)
			Expect(third).NotTo(BeIdenticalTo(first))
			Expect(third.Items).To(HaveLen(2))
		})
	})
})
