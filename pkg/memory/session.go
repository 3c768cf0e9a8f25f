package memory

import "time"

// Session is a client conversation session. Sessions are created by the
// session-management collaborator at session start; the engine only reads
// them and appends summary output and memory references at session end.
//
// A session references client memories by id and owns none of them.
type Session struct {
	ID       string    `json:"id"`
	ClientID string    `json:"client_id"`
	Date     time.Time `json:"date"`

	// TopicsDiscussed is ordered by first mention.
	TopicsDiscussed []string `json:"topics_discussed,omitempty"`

	Summary map[string]any `json:"summary,omitempty"`

	// MemoryIDs references the client memories distilled from this session.
	MemoryIDs []string `json:"memory_ids,omitempty"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.TopicsDiscussed = append([]string(nil), s.TopicsDiscussed...)
	out.MemoryIDs = append([]string(nil), s.MemoryIDs...)
	if s.Summary != nil {
		out.Summary = make(map[string]any, len(s.Summary))
		for k, v := range s.Summary {
			out.Summary[k] = v
		}
	}
	return &out
}
