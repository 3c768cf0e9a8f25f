package bruteforce_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector/bruteforce"
)

var _ = Describe("BruteForce Index", func() {
	var (
		driver *bruteforce.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		driver = bruteforce.NewDriver()
		ctx = context.Background()
	})

	Describe("Query", func() {
		BeforeEach(func() {
			err := driver.Add(ctx, vector.CollectionJane, []vector.Document{
				{ID: "exact", Embedding: []float32{1, 0, 0}},
				{ID: "close", Embedding: []float32{0.9, 0.1, 0}},
				{ID: "far", Embedding: []float32{0, 1, 0}},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("orders hits by descending cosine similarity", func() {
			hits, err := driver.Query(ctx, vector.CollectionJane, []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
			Expect(hits[0].ID).To(Equal("exact"))
			Expect(hits[0].Score).To(BeNumerically("~", 1.0, 1e-6))
			Expect(hits[1].ID).To(Equal("close"))
			Expect(hits[2].ID).To(Equal("far"))
		})

		It("truncates to topK", func() {
			hits, err := driver.Query(ctx, vector.CollectionJane, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(2))
		})

		It("breaks score ties by recency", func() {
			now := time.Now().UTC()
			err := driver.Add(ctx, "ties", []vector.Document{
				{ID: "old", Embedding: []float32{1, 0}, UpdatedAt: now.Add(-time.Hour)},
				{ID: "new", Embedding: []float32{1, 0}, UpdatedAt: now},
			})
			Expect(err).NotTo(HaveOccurred())

			hits, err := driver.Query(ctx, "ties", []float32{1, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].ID).To(Equal("new"))
			Expect(hits[1].ID).To(Equal("old"))
		})

		It("returns nothing for an unknown collection", func() {
			hits, err := driver.Query(ctx, "missing", []float32{1, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(BeEmpty())
		})
	})

	Describe("Add", func() {
		It("replaces documents with the same id", func() {
			doc := vector.Document{ID: "d", Embedding: []float32{1, 0}, Status: "draft"}
			Expect(driver.Add(ctx, "c", []vector.Document{doc})).To(Succeed())

			doc.Status = "canon"
			Expect(driver.Add(ctx, "c", []vector.Document{doc})).To(Succeed())

			docs, err := driver.Get(ctx, "c", []string{"d"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Status).To(Equal("canon"))
		})

		It("copies embeddings so callers cannot mutate stored state", func() {
			embedding := []float32{1, 0}
			Expect(driver.Add(ctx, "c", []vector.Document{{ID: "d", Embedding: embedding}})).To(Succeed())

			embedding[0] = -1

			docs, _ := driver.Get(ctx, "c", []string{"d"})
			Expect(docs[0].Embedding).To(Equal([]float32{1, 0}))
		})
	})

	Describe("Get", func() {
		It("omits unknown ids silently", func() {
			Expect(driver.Add(ctx, "c", []vector.Document{{ID: "a", Embedding: []float32{1}}})).To(Succeed())

			docs, err := driver.Get(ctx, "c", []string{"a", "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("a"))
		})
	})

	Describe("Delete", func() {
		It("removes documents by id", func() {
			Expect(driver.Add(ctx, "c", []vector.Document{
				{ID: "a", Embedding: []float32{1, 0}},
				{ID: "b", Embedding: []float32{0, 1}},
			})).To(Succeed())

			Expect(driver.Delete(ctx, "c", []string{"a"})).To(Succeed())

			hits, err := driver.Query(ctx, "c", []float32{1, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].ID).To(Equal("b"))
		})
	})
})
