// Package retrieval implements the retrieval router: it classifies an
// incoming conversation turn, fans out to the relevant similarity-index
// collections under independent deadlines, then merges, ranks, deduplicates
// and sanitizes the results into a context bundle.
//
// Timeouts degrade, never abort: a sub-query that misses its deadline is
// dropped and the bundle is flagged Degraded. Only when every sub-query
// fails is the bundle flagged Empty so the caller can fall back to a generic
// reply instead of hanging the conversation.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/embeddings"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/sanitizer"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
)

const (
	defaultSubQueryTimeout = 2 * time.Second
	defaultTopK            = 5

	// defaultDedupeThreshold is the cosine similarity above which two hits
	// are treated as near-duplicates and collapsed to the higher-scoring one.
	defaultDedupeThreshold = 0.92
)

// Query is one retrieval request: the turn text plus the conversational
// scope it arrived in.
type Query struct {
	// Text is the conversation turn to retrieve context for.
	Text string

	// ClientID scopes client-history lookups. Empty skips that bucket.
	ClientID string

	// Window is the recent conversation window used for cache fingerprinting.
	Window []string

	// Hints force-include classification buckets.
	Hints []Bucket
}

// Item is one ranked context hit.
type Item struct {
	// Memory is the resolved record. Knowledge hits arrive sanitized.
	Memory *memory.Memory

	// Score is the source-specific relevance score in [-1, 1]; exact topic
	// matches score 1.
	Score float32

	// Source is the bucket that produced the hit.
	Source Bucket

	embedding []float32
}

// Bundle is the merged, ranked, deduplicated retrieval result.
type Bundle struct {
	Items []Item

	// Degraded is set when at least one sub-query missed its deadline or
	// failed; the bundle then holds partial context.
	Degraded bool

	// Empty is set when every sub-query failed. The caller should produce a
	// generic fallback reply.
	Empty bool
}

// Config holds the router's collaborators and tuning knobs.
type Config struct {
	Store    store.Driver
	Vector   vector.Driver
	Embedder embeddings.Embedder
	Cache    *Cache
	Logger   *zap.Logger

	// SubQueryTimeout is the independent deadline for each sub-query.
	SubQueryTimeout time.Duration

	// TopK is the per-collection result count.
	TopK int

	// DedupeThreshold is the near-duplicate cosine cutoff.
	DedupeThreshold float32
}

// Router assembles context bundles for conversation turns.
type Router struct {
	store    store.Driver
	vector   vector.Driver
	embedder embeddings.Embedder
	cache    *Cache
	logger   *zap.Logger

	subQueryTimeout time.Duration
	topK            int
	dedupeThreshold float32
}

// NewRouter creates a retrieval router.
func NewRouter(cfg Config) *Router {
	timeout := cfg.SubQueryTimeout
	if timeout <= 0 {
		timeout = defaultSubQueryTimeout
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	threshold := cfg.DedupeThreshold
	if threshold <= 0 {
		threshold = defaultDedupeThreshold
	}

	return &Router{
		store:           cfg.Store,
		vector:          cfg.Vector,
		embedder:        cfg.Embedder,
		cache:           cfg.Cache,
		logger:          cfg.Logger,
		subQueryTimeout: timeout,
		topK:            topK,
		dedupeThreshold: threshold,
	}
}

// InvalidateCache drops all cached bundles. Called after any transition that
// changes a collection's canon set.
func (r *Router) InvalidateCache() {
	if r.cache != nil {
		r.cache.Reset()
	}
}

type subResult struct {
	bucket Bucket
	items  []Item
	err    error
}

// Retrieve assembles the context bundle for one turn. Retrieval never fails
// the turn: errors and timeouts surface only as the Degraded and Empty flags.
func (r *Router) Retrieve(ctx context.Context, q Query) *Bundle {
	fingerprint := Fingerprint(q.ClientID, append(append([]string(nil), q.Window...), q.Text))
	if r.cache != nil {
		if bundle, ok := r.cache.Get(fingerprint); ok {
			r.logger.Debug("hot context hit", zap.String("fingerprint", fingerprint[:12]))
			return bundle
		}
	}

	buckets := Classify(q.Text, q.Hints...)

	embedding, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		r.logger.Warn("query embedding failed, similarity sub-queries will degrade", zap.Error(err))
		embedding = nil
	}

	results := make(chan subResult, len(buckets))
	for _, bucket := range buckets {
		go func(bucket Bucket) {
			subCtx, cancel := context.WithTimeout(ctx, r.subQueryTimeout)
			defer cancel()

			items, err := r.subQuery(subCtx, bucket, q, embedding)
			results <- subResult{bucket: bucket, items: items, err: err}
		}(bucket)
	}

	bundle := &Bundle{}
	var merged []Item
	succeeded := 0
	for range buckets {
		res := <-results
		if res.err != nil {
			bundle.Degraded = true
			r.logger.Warn("sub-query degraded",
				zap.String("bucket", string(res.bucket)),
				zap.Error(res.err),
			)
			continue
		}
		succeeded++
		merged = append(merged, res.items...)
	}

	if succeeded == 0 {
		bundle.Empty = true
		return bundle
	}

	bundle.Items = r.rankAndDedupe(merged)

	if r.cache != nil {
		r.cache.Put(fingerprint, bundle)
	}
	return bundle
}

// subQuery runs one bucket's lookup under its own deadline.
func (r *Router) subQuery(ctx context.Context, bucket Bucket, q Query, embedding []float32) ([]Item, error) {
	switch bucket {
	case BucketJane:
		return r.queryJane(ctx, q.Text, embedding)
	case BucketClientHistory:
		if q.ClientID == "" {
			return nil, nil
		}
		return r.querySimilar(ctx, bucket, vector.ClientCollection(q.ClientID), embedding)
	case BucketTherapeutic:
		items, err := r.querySimilar(ctx, bucket, vector.CollectionKnowledge, embedding)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Memory.Content = sanitizer.Scrub(items[i].Memory.Content)
		}
		return items, nil
	default:
		return nil, nil
	}
}

// queryJane prefers exact topic matches over similarity: a turn that names a
// canon topic verbatim retrieves that topic's memories with full score.
func (r *Router) queryJane(ctx context.Context, text string, embedding []float32) ([]Item, error) {
	canon, err := r.store.ListByKindStatus(ctx, memory.KindJane, memory.StatusCanon)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(text)
	var exact []Item
	for _, m := range canon {
		topic := strings.ToLower(m.Topic())
		if topic != "" && strings.Contains(lowered, topic) {
			exact = append(exact, Item{Memory: m, Score: 1, Source: BucketJane})
		}
	}
	if len(exact) > 0 {
		return exact, nil
	}

	return r.querySimilar(ctx, BucketJane, vector.CollectionJane, embedding)
}

// querySimilar runs one similarity lookup and resolves hits through the
// store, keeping only records that are still canon right now. The index entry
// status can lag; the store read is authoritative.
func (r *Router) querySimilar(ctx context.Context, bucket Bucket, collection string, embedding []float32) ([]Item, error) {
	if len(embedding) == 0 {
		return nil, vector.ErrEmbedding
	}

	hits, err := r.vector.Query(ctx, collection, embedding, r.topK)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(hits))
	for _, hit := range hits {
		if hit.Status != string(memory.StatusCanon) {
			continue
		}

		m, err := r.store.Get(ctx, hit.ID)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if m.Status != memory.StatusCanon {
			continue
		}

		items = append(items, Item{
			Memory:    m,
			Score:     hit.Score,
			Source:    bucket,
			embedding: hit.Embedding,
		})
	}
	return items, nil
}

// rankAndDedupe orders items by score then recency, and collapses
// near-duplicate pairs to their highest-scoring representative.
func (r *Router) rankAndDedupe(items []Item) []Item {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Memory.UpdatedAt.After(items[j].Memory.UpdatedAt)
	})

	kept := make([]Item, 0, len(items))
	for _, candidate := range items {
		duplicate := false
		for _, k := range kept {
			if k.Memory.ID == candidate.Memory.ID {
				duplicate = true
				break
			}
			if len(candidate.embedding) > 0 && len(k.embedding) > 0 &&
				vector.Cosine(candidate.embedding, k.embedding) >= r.dedupeThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}
