package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/crypto"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store/sqlite"
)

func newTestDriver(codec *crypto.Codec) *sqlite.Driver {
	logger, _ := zap.NewDevelopment()

	driver, err := sqlite.NewDriver(sqlite.Config{
		DBPath: filepath.Join(GinkgoT().TempDir(), "memories.db"),
		Codec:  codec,
	}, logger)
	Expect(err).NotTo(HaveOccurred())

	return driver
}

var _ = Describe("SQLite Store", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		driver = newTestDriver(nil)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	It("requires a database path", func() {
		logger, _ := zap.NewDevelopment()
		_, err := sqlite.NewDriver(sqlite.Config{}, logger)
		Expect(err).To(HaveOccurred())
	})

	Describe("Put and Get", func() {
		It("round-trips a draft with all facet fields", func() {
			draft := memory.NewClientDraft("c1", "Client mentioned a brother", memory.Actor{Model: "m"})
			draft.Client.DisclosureType = "relationship"
			draft.Client.Sensitivity = 2
			draft.Client.Topics = []string{"family"}

			id, err := driver.Put(ctx, draft)
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("Client mentioned a brother"))
			Expect(got.Client.DisclosureType).To(Equal("relationship"))
			Expect(got.Client.Topics).To(Equal([]string{"family"}))
			Expect(got.Version).To(Equal(1))
		})

		It("rejects duplicate ids", func() {
			draft := memory.NewJaneDraft("t", "c", memory.Actor{})
			_, err := driver.Put(ctx, draft)
			Expect(err).NotTo(HaveOccurred())

			_, err = driver.Put(ctx, draft)
			Expect(err).To(MatchError(store.ErrExists))
		})

		It("returns not-found for unknown ids", func() {
			_, err := driver.Get(ctx, "nope")
			Expect(store.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Transition", func() {
		var id string

		BeforeEach(func() {
			draft := memory.NewJaneDraft("hometown", "Jane grew up in Ohio", memory.Actor{Model: "m"})
			var err error
			id, err = driver.Put(ctx, draft)
			Expect(err).NotTo(HaveOccurred())
		})

		It("persists the full lifecycle with one audit entry per edge", func() {
			_, err := driver.Transition(ctx, id, memory.StatusQuarantined, memory.SystemActor, "submitted", 1)
			Expect(err).NotTo(HaveOccurred())
			m, err := driver.Transition(ctx, id, memory.StatusCanon, memory.SystemActor, "validator: consistent", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Status).To(Equal(memory.StatusCanon))

			entries, err := driver.Audit(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].FromStatus).To(BeEmpty())
			Expect(entries[2].ToStatus).To(Equal(memory.StatusCanon))

			versions, err := driver.History(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(versions).To(HaveLen(3))
		})

		It("rejects stale versions with a conflict", func() {
			_, err := driver.Transition(ctx, id, memory.StatusQuarantined, memory.SystemActor, "", 1)
			Expect(err).NotTo(HaveOccurred())

			_, err = driver.Transition(ctx, id, memory.StatusDeleted, memory.SystemActor, "", 1)
			Expect(store.IsConflict(err)).To(BeTrue())
		})

		It("treats a repeat of the current status as a no-op", func() {
			_, err := driver.Transition(ctx, id, memory.StatusQuarantined, memory.SystemActor, "", 1)
			Expect(err).NotTo(HaveOccurred())

			m, err := driver.Transition(ctx, id, memory.StatusQuarantined, memory.SystemActor, "again", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Version).To(Equal(2))

			entries, _ := driver.Audit(ctx, id)
			Expect(entries).To(HaveLen(2))
		})

		It("rejects illegal edges without touching the record", func() {
			_, err := driver.Transition(ctx, id, memory.StatusCanon, memory.SystemActor, "", 1)
			Expect(store.IsInvalidTransition(err)).To(BeTrue())

			got, _ := driver.Get(ctx, id)
			Expect(got.Status).To(Equal(memory.StatusDraft))
			Expect(got.Version).To(Equal(1))
		})
	})

	Describe("SetLinks and AttachSession", func() {
		It("records links without an audit entry", func() {
			draft := memory.NewJaneDraft("t", "c", memory.Actor{})
			id, _ := driver.Put(ctx, draft)

			m, err := driver.SetLinks(ctx, id, []string{"other"}, nil, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Version).To(Equal(2))
			Expect(m.Jane.Contradicts).To(Equal([]string{"other"}))

			entries, _ := driver.Audit(ctx, id)
			Expect(entries).To(HaveLen(1))
		})

		It("deduplicates attached sessions", func() {
			draft := memory.NewClientDraft("c1", "c", memory.Actor{})
			id, _ := driver.Put(ctx, draft)

			_, err := driver.AttachSession(ctx, id, "s1", 1)
			Expect(err).NotTo(HaveOccurred())
			m, err := driver.AttachSession(ctx, id, "s1", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Client.Sessions).To(Equal([]string{"s1"}))
		})
	})

	Describe("ListByKindStatus", func() {
		It("filters to current versions only", func() {
			a := memory.NewJaneDraft("a", "a", memory.Actor{})
			idA, _ := driver.Put(ctx, a)
			_, err := driver.Transition(ctx, idA, memory.StatusQuarantined, memory.SystemActor, "", 1)
			Expect(err).NotTo(HaveOccurred())

			b := memory.NewJaneDraft("b", "b", memory.Actor{})
			_, err = driver.Put(ctx, b)
			Expect(err).NotTo(HaveOccurred())

			drafts, err := driver.ListByKindStatus(ctx, memory.KindJane, memory.StatusDraft)
			Expect(err).NotTo(HaveOccurred())
			Expect(drafts).To(HaveLen(1))
			Expect(drafts[0].ID).To(Equal(b.ID))
		})
	})

	Describe("Sessions", func() {
		It("round-trips and merges session state", func() {
			s := &memory.Session{ID: "s1", ClientID: "c1", TopicsDiscussed: []string{"sleep", "work"}}
			Expect(driver.PutSession(ctx, s)).To(Succeed())

			_, err := driver.AppendSessionMemories(ctx, "s1", map[string]any{"summary": "short"}, "m1")
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.GetSession(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.MemoryIDs).To(Equal([]string{"m1"}))
			Expect(got.Summary).To(HaveKeyWithValue("summary", "short"))
		})
	})

	Describe("Encryption at rest", func() {
		It("stores sensitive content sealed and serves it decrypted", func() {
			key, err := crypto.GenerateKey()
			Expect(err).NotTo(HaveOccurred())
			codec, err := crypto.NewCodec(key)
			Expect(err).NotTo(HaveOccurred())

			dbPath := filepath.Join(GinkgoT().TempDir(), "sealed.db")
			logger, _ := zap.NewDevelopment()
			enc, err := sqlite.NewDriver(sqlite.Config{DBPath: dbPath, Codec: codec}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer enc.Close()

			draft := memory.NewClientDraft("c1", "diagnosed with PTSD in 2019", memory.Actor{Model: "m"})
			draft.NeedsEncryption = true
			id, err := enc.Put(ctx, draft)
			Expect(err).NotTo(HaveOccurred())

			got, err := enc.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("diagnosed with PTSD in 2019"))

			// The raw payload on disk must not contain the plaintext.
			db, err := sql.Open("sqlite3", dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer db.Close()

			var payload []byte
			err = db.QueryRow(`SELECT payload FROM memories WHERE id = ?`, id).Scan(&payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(payload)).NotTo(ContainSubstring("diagnosed with PTSD"))
		})
	})
})
