// Package summarizer condenses a finished session into client memory drafts
// and feeds them through the quarantine pipeline.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/llm"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/quarantine"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
)

// Config holds the summarizer's collaborators.
type Config struct {
	Store    store.Driver
	Pipeline *quarantine.Pipeline
	Generate llm.GenerateFunc
	Logger   *zap.Logger

	// Model names the drafting model recorded on generated memories.
	Model string
}

// Summarizer distills sessions into client disclosures.
type Summarizer struct {
	store    store.Driver
	pipeline *quarantine.Pipeline
	generate llm.GenerateFunc
	logger   *zap.Logger
	model    string
}

// NewSummarizer creates a session summarizer.
func NewSummarizer(cfg Config) *Summarizer {
	model := cfg.Model
	if model == "" {
		model = "unknown"
	}
	return &Summarizer{
		store:    cfg.Store,
		pipeline: cfg.Pipeline,
		generate: cfg.Generate,
		logger:   cfg.Logger,
		model:    model,
	}
}

// Request is one end-of-session summarization.
type Request struct {
	// SessionID identifies the finished session.
	SessionID string

	// SessionNumber is this session's ordinal for the client, recorded on
	// every generated disclosure.
	SessionNumber int

	// Transcript is the conversation text supplied by the session-management
	// collaborator.
	Transcript string
}

// Result reports the summarization outcome.
type Result struct {
	// Memories are the submitted drafts in their post-pipeline state: canon
	// or human_review.
	Memories []*memory.Memory

	// Summary is the structured summary appended to the session.
	Summary map[string]any
}

const summaryPrompt = `You are distilling a therapy session into durable client memories.
Given the session topics and the transcript, produce a short structured summary and the
discrete disclosures the client made.

Respond with JSON only, in this shape:
{
  "summary": "<2-3 sentence session summary>",
  "disclosures": [
    {
      "content": "<one self-contained factual disclosure>",
      "disclosure_type": "<e.g. personal_history, symptom, relationship, goal>",
      "sensitivity_level": <integer 1-5>,
      "topics": ["<topic>", ...]
    }
  ]
}`

type disclosure struct {
	Content          string   `json:"content"`
	DisclosureType   string   `json:"disclosure_type"`
	SensitivityLevel int      `json:"sensitivity_level"`
	Topics           []string `json:"topics"`
}

type summaryResponse struct {
	Summary     string       `json:"summary"`
	Disclosures []disclosure `json:"disclosures"`
}

// Summarize drafts client memories from the transcript, submits each through
// the quarantine pipeline, and appends the summary and memory references to
// the session. Drafts that end in human review are still referenced by the
// session; their content only becomes retrievable if a human promotes them.
func (s *Summarizer) Summarize(ctx context.Context, req Request) (*Result, error) {
	session, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	contextText := fmt.Sprintf("TOPICS DISCUSSED: %s\n\nTRANSCRIPT:\n%s",
		strings.Join(session.TopicsDiscussed, ", "), req.Transcript)

	raw, err := s.generate(ctx, summaryPrompt, contextText)
	if err != nil {
		return nil, fmt.Errorf("drafting summary: %w", err)
	}

	resp, err := parseSummary(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}

	result := &Result{
		Summary: map[string]any{
			"summary":        resp.Summary,
			"session_number": req.SessionNumber,
		},
	}

	var memoryIDs []string
	for _, d := range resp.Disclosures {
		if d.Content == "" {
			continue
		}

		draft := memory.NewClientDraft(session.ClientID, d.Content, memory.Actor{Model: s.model})
		draft.Client.DisclosureType = d.DisclosureType
		draft.Client.Sensitivity = clampSensitivity(d.SensitivityLevel)
		draft.Client.Topics = d.Topics
		draft.Client.DisclosedAt = session.Date
		draft.Client.SessionNumber = req.SessionNumber
		draft.NeedsEncryption = draft.Client.Sensitivity >= 4

		submitted, err := s.pipeline.Submit(ctx, draft)
		if err != nil {
			s.logger.Error("submitting disclosure draft failed",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
			continue
		}

		s.attachSession(ctx, submitted.ID, session.ID)
		memoryIDs = append(memoryIDs, submitted.ID)
		result.Memories = append(result.Memories, submitted)
	}

	if _, err := s.store.AppendSessionMemories(ctx, session.ID, result.Summary, memoryIDs...); err != nil {
		return nil, fmt.Errorf("appending session summary: %w", err)
	}

	s.logger.Info("session summarized",
		zap.String("session_id", session.ID),
		zap.Int("disclosures", len(memoryIDs)),
	)
	return result, nil
}

// attachSession records the back-reference from the memory to the session,
// retrying optimistic conflicts.
func (s *Summarizer) attachSession(ctx context.Context, memoryID, sessionID string) {
	for attempt := 0; attempt < 3; attempt++ {
		current, err := s.store.Get(ctx, memoryID)
		if err != nil {
			s.logger.Warn("reading memory for session attachment failed",
				zap.String("memory_id", memoryID),
				zap.Error(err),
			)
			return
		}

		_, err = s.store.AttachSession(ctx, memoryID, sessionID, current.Version)
		if err == nil {
			return
		}
		if !store.IsConflict(err) {
			s.logger.Warn("attaching session reference failed",
				zap.String("memory_id", memoryID),
				zap.Error(err),
			)
			return
		}
	}
}

func parseSummary(raw string) (*summaryResponse, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	var resp summaryResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func clampSensitivity(level int) int {
	if level < 1 {
		return 1
	}
	if level > 5 {
		return 5
	}
	return level
}
