package retrieval

import "strings"

// Bucket names the sub-stores a query can be routed to. Classification is
// not exclusive: one query may consult several buckets at once.
type Bucket string

const (
	// BucketJane routes to the persona's own canon memories.
	BucketJane Bucket = "about-jane"

	// BucketClientHistory routes to the client's canon disclosures.
	BucketClientHistory Bucket = "about-client-history"

	// BucketTherapeutic routes to the knowledge base.
	BucketTherapeutic Bucket = "therapeutic-question"
)

var janeCues = []string{
	"you", "your", "yourself", "jane",
	"where did you", "do you", "have you", "tell me about your",
}

var clientCues = []string{
	"i ", "my ", "me ", "we talked", "last session", "last time",
	"i told you", "remember when", "i said", "i mentioned",
}

var therapeuticCues = []string{
	"how do i", "how can i", "what is", "what are", "why do",
	"cope", "coping", "technique", "exercise", "strategy",
	"anxiety", "depression", "stress", "therapy", "treatment",
	"panic", "trauma", "grief", "sleep",
}

// Classify assigns a query to one or more buckets using keyword cues,
// folding in any explicit hints from the caller. A query matching no cue is
// sent to every bucket: consulting too many sub-stores costs latency, while
// consulting too few loses context.
func Classify(query string, hints ...Bucket) []Bucket {
	text := " " + strings.ToLower(query) + " "

	seen := make(map[Bucket]bool, 3)
	var buckets []Bucket

	add := func(b Bucket) {
		if !seen[b] {
			seen[b] = true
			buckets = append(buckets, b)
		}
	}

	for _, h := range hints {
		add(h)
	}

	if containsAny(text, janeCues) {
		add(BucketJane)
	}
	if containsAny(text, clientCues) {
		add(BucketClientHistory)
	}
	if containsAny(text, therapeuticCues) {
		add(BucketTherapeutic)
	}

	if len(buckets) == 0 {
		return []Bucket{BucketJane, BucketClientHistory, BucketTherapeutic}
	}
	return buckets
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
