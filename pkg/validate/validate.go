// Package validate implements the consistency validator: the judgment step
// that decides whether a quarantined draft agrees with the existing canon.
//
// The validator is fail-safe. The external language-model judgment call can
// fail or time out; after bounded retries the verdict is forced to
// Inconsistent, because an unverifiable claim must never silently enter
// canon.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/embeddings"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/llm"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
)

const (
	defaultTopN       = 5
	defaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond
)

// Relation values the judgment model may assign per related memory.
const (
	RelationContradicts = "contradicts"
	RelationSupports    = "supports"
	RelationNeutral     = "neutral"
)

// Verdict is the validator's decision for one draft.
type Verdict struct {
	// Consistent is false when any related canon memory contradicts the
	// draft, or when judgment could not be obtained.
	Consistent bool

	// Conflicts lists the ids of contradicting canon memories.
	Conflicts []string

	// Supports lists the ids of corroborating canon memories.
	Supports []string

	// Reason is a short human-readable account of the decision.
	Reason string
}

// Config holds the validator's collaborators and tuning knobs.
type Config struct {
	Store    store.Driver
	Vector   vector.Driver
	Embedder embeddings.Embedder
	Generate llm.GenerateFunc
	Logger   *zap.Logger

	// TopN is how many plausibly related canon memories to judge against.
	TopN int

	// MaxRetries bounds judgment retries before forcing Inconsistent.
	MaxRetries int

	// Backoff is the base delay between judgment retries.
	Backoff time.Duration
}

// Validator judges drafts against canon.
type Validator struct {
	store    store.Driver
	vector   vector.Driver
	embedder embeddings.Embedder
	generate llm.GenerateFunc
	logger   *zap.Logger

	topN       int
	maxRetries int
	backoff    time.Duration
}

// NewValidator creates a consistency validator.
func NewValidator(cfg Config) *Validator {
	topN := cfg.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	return &Validator{
		store:      cfg.Store,
		vector:     cfg.Vector,
		embedder:   cfg.Embedder,
		generate:   cfg.Generate,
		logger:     cfg.Logger,
		topN:       topN,
		maxRetries: retries,
		backoff:    backoff,
	}
}

// Validate judges a persona draft against the top-n related canon persona
// memories. Discovered contradicts/supports links are recorded on the draft
// regardless of the verdict, so the relationship survives a trip through
// human review.
func (v *Validator) Validate(ctx context.Context, draft *memory.Memory) Verdict {
	return v.validateAgainst(ctx, draft, vector.CollectionJane)
}

// ValidateClient runs the simplified self-contradiction pass for client
// disclosures: the draft is judged only against the same client's prior
// canon disclosures, never against the persona's canon.
func (v *Validator) ValidateClient(ctx context.Context, draft *memory.Memory) Verdict {
	clientID := draft.ClientID()
	if clientID == "" {
		return Verdict{Consistent: false, Reason: "client draft without client id"}
	}
	return v.validateAgainst(ctx, draft, vector.ClientCollection(clientID))
}

func (v *Validator) validateAgainst(ctx context.Context, draft *memory.Memory, collection string) Verdict {
	related, err := v.relatedCanon(ctx, draft, collection)
	if err != nil {
		v.logger.Warn("related canon lookup failed, forcing inconsistent",
			zap.String("memory_id", draft.ID),
			zap.Error(err),
		)
		return Verdict{Consistent: false, Reason: fmt.Sprintf("related lookup failed: %v", err)}
	}

	if len(related) == 0 {
		return Verdict{Consistent: true, Reason: "no related canon memories"}
	}

	verdict := v.judge(ctx, draft, related)

	if draft.Kind == memory.KindJane {
		v.recordLinks(ctx, draft.ID, verdict)
	}
	return verdict
}

// relatedCanon finds the top-n canon memories plausibly related to the draft
// by embedding similarity.
func (v *Validator) relatedCanon(ctx context.Context, draft *memory.Memory, collection string) ([]*memory.Memory, error) {
	embedding, err := v.embedder.Embed(ctx, draft.Content)
	if err != nil {
		return nil, fmt.Errorf("embedding draft: %w", err)
	}

	hits, err := v.vector.Query(ctx, collection, embedding, v.topN)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	related := make([]*memory.Memory, 0, len(hits))
	for _, hit := range hits {
		if hit.ID == draft.ID {
			continue
		}
		m, err := v.store.Get(ctx, hit.ID)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if m.Status != memory.StatusCanon {
			continue
		}
		related = append(related, m)
	}
	return related, nil
}

type judgment struct {
	MemoryID string `json:"memory_id"`
	Relation string `json:"relation"`
}

type judgmentResponse struct {
	Judgments []judgment `json:"judgments"`
}

const judgmentPrompt = `You are a consistency checker for a persona's memory store.
Given a CANDIDATE statement and a numbered list of ESTABLISHED memories, classify
the relation of each established memory to the candidate as exactly one of
"contradicts", "supports" or "neutral".

Respond with JSON only, in this shape:
{"judgments": [{"memory_id": "<id>", "relation": "contradicts|supports|neutral"}]}`

// judge invokes the external judgment service with bounded retries. Any
// contradiction makes the verdict Inconsistent; any terminal failure forces
// Inconsistent.
func (v *Validator) judge(ctx context.Context, draft *memory.Memory, related []*memory.Memory) Verdict {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CANDIDATE: %s\n\nESTABLISHED:\n", draft.Content)
	for i, m := range related {
		fmt.Fprintf(&sb, "%d. memory_id=%s content=%s\n", i+1, m.ID, m.Content)
	}
	contextText := sb.String()

	var lastErr error
	for attempt := 0; attempt <= v.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Verdict{
					Consistent: false,
					Reason:     fmt.Sprintf("judgment unavailable: %v", ctx.Err()),
				}
			case <-time.After(v.backoff * time.Duration(attempt)):
			}
		}

		raw, err := v.generate(ctx, judgmentPrompt, contextText)
		if err != nil {
			lastErr = err
			v.logger.Warn("judgment call failed",
				zap.String("memory_id", draft.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		verdict, err := parseVerdict(raw, related)
		if err != nil {
			lastErr = err
			v.logger.Warn("judgment response unparseable",
				zap.String("memory_id", draft.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		return verdict
	}

	return Verdict{
		Consistent: false,
		Reason:     fmt.Sprintf("judgment unavailable: %v", lastErr),
	}
}

// parseVerdict interprets the model's JSON. Unknown memory ids and unknown
// relations are ignored rather than failing the whole judgment.
func parseVerdict(raw string, related []*memory.Memory) (Verdict, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	var resp judgmentResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &resp); err != nil {
		return Verdict{}, fmt.Errorf("decoding judgment: %w", err)
	}

	known := make(map[string]bool, len(related))
	for _, m := range related {
		known[m.ID] = true
	}

	verdict := Verdict{Consistent: true}
	for _, j := range resp.Judgments {
		if !known[j.MemoryID] {
			continue
		}
		switch j.Relation {
		case RelationContradicts:
			verdict.Consistent = false
			verdict.Conflicts = append(verdict.Conflicts, j.MemoryID)
		case RelationSupports:
			verdict.Supports = append(verdict.Supports, j.MemoryID)
		}
	}

	if verdict.Consistent {
		verdict.Reason = "no contradictions among related canon memories"
	} else {
		verdict.Reason = fmt.Sprintf("contradicts %s", strings.Join(verdict.Conflicts, ", "))
	}
	return verdict, nil
}

// recordLinks persists discovered contradicts/supports references on the
// draft, retrying optimistic conflicts by re-reading the current version.
func (v *Validator) recordLinks(ctx context.Context, id string, verdict Verdict) {
	if len(verdict.Conflicts) == 0 && len(verdict.Supports) == 0 {
		return
	}

	for attempt := 0; attempt < 3; attempt++ {
		current, err := v.store.Get(ctx, id)
		if err != nil {
			v.logger.Error("reading draft for link recording failed",
				zap.String("memory_id", id),
				zap.Error(err),
			)
			return
		}

		_, err = v.store.SetLinks(ctx, id, verdict.Conflicts, verdict.Supports, current.Version)
		if err == nil {
			return
		}
		if !store.IsConflict(err) {
			v.logger.Error("recording links failed",
				zap.String("memory_id", id),
				zap.Error(err),
			)
			return
		}
	}

	v.logger.Error("recording links exhausted conflict retries", zap.String("memory_id", id))
}
