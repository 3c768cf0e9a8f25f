package engine_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/engine"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/indexer"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/quarantine"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/retrieval"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store/inmemory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/summarizer"
	testutils "github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/utils/test"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/validate"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector/bruteforce"
)

var _ = Describe("Engine", func() {
	var (
		driver     *inmemory.Driver
		index      *bruteforce.Driver
		embedder   *testutils.MockEmbedder
		generate   *testutils.MockGenerate
		sessionGen *testutils.MockGenerate
		pool       *indexer.Pool
		eng        *engine.Engine
		ctx        context.Context
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		index = bruteforce.NewDriver()
		embedder = testutils.NewMockEmbedder()
		generate = &testutils.MockGenerate{}
		sessionGen = &testutils.MockGenerate{}
		ctx = context.Background()

		logger, _ := zap.NewDevelopment()

		var err error
		pool, err = indexer.NewPool(&indexer.Config{
			VectorDriver: index,
			Embedder:     embedder,
			Logger:       logger,
		})
		Expect(err).NotTo(HaveOccurred())

		router := retrieval.NewRouter(retrieval.Config{
			Store:    driver,
			Vector:   index,
			Embedder: embedder,
			Logger:   logger,
		})
		validator := validate.NewValidator(validate.Config{
			Store:    driver,
			Vector:   index,
			Embedder: embedder,
			Generate: generate.Func(),
			Logger:   logger,
			Backoff:  time.Millisecond,
		})
		pipeline := quarantine.NewPipeline(quarantine.Config{
			Store:     driver,
			Validator: validator,
			Logger:    logger,
			Indexer:   pool,
		})
		summ := summarizer.NewSummarizer(summarizer.Config{
			Store:    driver,
			Pipeline: pipeline,
			Generate: sessionGen.Func(),
			Logger:   logger,
			Model:    "test-model",
		})

		eng = engine.New(engine.Config{
			Store:      driver,
			Router:     router,
			Pipeline:   pipeline,
			Summarizer: summ,
			Indexer:    pool,
			Logger:     logger,
		})
	})

	Describe("CommitFacts", func() {
		It("commits drafts and skips the ones that fail", func() {
			good := memory.NewJaneDraft("hometown", "Jane grew up in Ohio", memory.Actor{Model: "m"})
			bad := memory.NewKnowledgeChunk("doc.pdf", 1, "chunks bypass quarantine", nil)

			committed := eng.CommitFacts(ctx, []*memory.Memory{good, bad})

			Expect(committed).To(HaveLen(1))
			Expect(committed[0].Status).To(Equal(memory.StatusCanon))
		})

		It("indexes committed facts asynchronously", func() {
			draft := memory.NewJaneDraft("hometown", "Jane grew up in Ohio", memory.Actor{Model: "m"})

			committed := eng.CommitFacts(ctx, []*memory.Memory{draft})
			Expect(committed).To(HaveLen(1))
			pool.Close()

			docs, err := index.Get(ctx, vector.CollectionJane, []string{committed[0].ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Status).To(Equal("canon"))
		})
	})

	Describe("HandleTurn", func() {
		It("retrieves committed facts for later turns", func() {
			draft := memory.NewJaneDraft("hometown", "Jane grew up in Columbus, Ohio", memory.Actor{Model: "m"})
			eng.CommitFacts(ctx, []*memory.Memory{draft})

			bundle := eng.HandleTurn(ctx, retrieval.Query{Text: "tell me about your hometown"})

			Expect(bundle.Empty).To(BeFalse())
			Expect(bundle.Items).To(HaveLen(1))
			Expect(bundle.Items[0].Score).To(Equal(float32(1)))
		})
	})

	Describe("AddKnowledge", func() {
		It("stores a chunk directly in canon and indexes it", func() {
			chunk := memory.NewKnowledgeChunk("manual.pdf", 4, "Box breathing for panic", []float32{1, 0})

			id, err := eng.AddKnowledge(ctx, chunk)
			Expect(err).NotTo(HaveOccurred())
			pool.Close()

			got, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(memory.StatusCanon))

			entries, err := driver.Audit(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))

			docs, err := index.Get(ctx, vector.CollectionKnowledge, []string{id})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Embedding).To(Equal([]float32{1, 0}))
		})

		It("rejects non-knowledge records", func() {
			draft := memory.NewJaneDraft("t", "c", memory.Actor{})
			_, err := eng.AddKnowledge(ctx, draft)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ResolveHumanReview and Delete", func() {
		It("applies the human decision through the pipeline", func() {
			embedder.Embeddings["Jane grew up in Texas"] = []float32{1, 0, 0}
			conflicting := memory.NewJaneDraft("hometown", "Jane grew up in Ohio", memory.Actor{Human: "editor-1"})
			conflicting.Status = memory.StatusCanon
			_, err := driver.Put(ctx, conflicting)
			Expect(err).NotTo(HaveOccurred())
			Expect(index.Add(ctx, vector.CollectionJane, []vector.Document{
				{ID: conflicting.ID, Embedding: []float32{1, 0, 0}, Status: "canon"},
			})).To(Succeed())

			generate.Responses = []string{
				`{"judgments": [{"memory_id": "` + conflicting.ID + `", "relation": "contradicts"}]}`}

			flagged := eng.CommitFacts(ctx, []*memory.Memory{
				memory.NewJaneDraft("hometown", "Jane grew up in Texas", memory.Actor{Model: "m"}),
			})
			Expect(flagged).To(HaveLen(1))
			Expect(flagged[0].Status).To(Equal(memory.StatusHumanReview))

			resolved, err := eng.ResolveHumanReview(ctx, flagged[0].ID, memory.StatusCanon, "editor-1", "confirmed")
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.Status).To(Equal(memory.StatusCanon))
		})

		It("soft-deletes through the pipeline", func() {
			committed := eng.CommitFacts(ctx, []*memory.Memory{
				memory.NewJaneDraft("hometown", "Jane grew up in Ohio", memory.Actor{Model: "m"}),
			})
			Expect(committed).To(HaveLen(1))

			deleted, err := eng.Delete(ctx, committed[0].ID, "editor-1", "redaction request")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted.Status).To(Equal(memory.StatusDeleted))
		})
	})

	Describe("EndSession", func() {
		It("summarizes a session into committed client memories", func() {
			Expect(driver.PutSession(ctx, &memory.Session{
				ID:              "s1",
				ClientID:        "c1",
				Date:            time.Now().UTC(),
				TopicsDiscussed: []string{"sleep"},
			})).To(Succeed())

			sessionGen.Responses = []string{`{
				"summary": "Client discussed sleep problems.",
				"disclosures": [{
					"content": "Has trouble falling asleep",
					"disclosure_type": "symptom",
					"sensitivity_level": 2,
					"topics": ["sleep"]
				}]
			}`}

			result, err := eng.EndSession(ctx, summarizer.Request{SessionID: "s1", SessionNumber: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Memories).To(HaveLen(1))
			Expect(result.Memories[0].Status).To(Equal(memory.StatusCanon))

			session, err := driver.GetSession(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.MemoryIDs).To(ConsistOf(result.Memories[0].ID))
		})
	})
})
