package protocol

// KnowledgeEntry is a shared, tagged, confidence-scored fact. Entries are
// append-only: the core never mutates or purges them, stale ones are filtered
// at query time.
type KnowledgeEntry struct {
	EntryID       string   `json:"entry_id"`
	AuthorAgentID string   `json:"author_agent_id"`
	Content       string   `json:"content"`
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`
	Tags          []string `json:"tags"`
	CreatedAt     string   `json:"created_at"`
}
