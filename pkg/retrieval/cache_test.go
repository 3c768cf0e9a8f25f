package retrieval_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/retrieval"
)

var _ = Describe("Cache", func() {
	var cache *retrieval.Cache

	BeforeEach(func() {
		var err error
		cache, err = retrieval.NewCache()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cache.Close()
	})

	It("stores and returns whole bundles by fingerprint", func() {
		bundle := &retrieval.Bundle{Degraded: true}
		fp := retrieval.Fingerprint("c1", []string{"turn one", "turn two"})

		cache.Put(fp, bundle)
		cache.Wait()

		got, ok := cache.Get(fp)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(bundle))
	})

	It("misses for unknown fingerprints", func() {
		_, ok := cache.Get(retrieval.Fingerprint("c1", []string{"never seen"}))
		Expect(ok).To(BeFalse())
	})

	It("drops everything on reset", func() {
		fp := retrieval.Fingerprint("c1", []string{"turn"})
		cache.Put(fp, &retrieval.Bundle{})
		cache.Wait()

		cache.Reset()

		_, ok := cache.Get(fp)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Fingerprint", func() {
	It("is stable for identical input", func() {
		a := retrieval.Fingerprint("c1", []string{"x", "y"})
		b := retrieval.Fingerprint("c1", []string{"x", "y"})
		Expect(a).To(Equal(b))
	})

	It("differs by client id", func() {
		a := retrieval.Fingerprint("c1", []string{"x"})
		b := retrieval.Fingerprint("c2", []string{"x"})
		Expect(a).NotTo(Equal(b))
	})

	It("differs by window content and boundaries", func() {
		a := retrieval.Fingerprint("c1", []string{"ab", "c"})
		b := retrieval.Fingerprint("c1", []string{"a", "bc"})
		Expect(a).NotTo(Equal(b))
	})
})
