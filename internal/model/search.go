package model

// SearchFilters narrows retrieval to chunks matching every set field.
// Filters are applied before ranking so top-K reflects eligible chunks only.
type SearchFilters struct {
	Category     DocumentCategory `json:"category,omitempty"`
	Jurisdiction string           `json:"jurisdiction,omitempty"`
	Concept      string           `json:"concept,omitempty"`
}

// Matches reports whether a chunk passes every set filter.
func (f SearchFilters) Matches(c *Chunk) bool {
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Jurisdiction != "" && c.Jurisdiction != f.Jurisdiction {
		return false
	}
	if f.Concept != "" && !c.HasConcept(f.Concept) {
		return false
	}
	return true
}

// SearchResult is a query-scoped ranking entry. Never persisted.
type SearchResult struct {
	Chunk      *Chunk      `json:"chunk"`
	Similarity float64     `json:"similarity"`
	Tier       StorageTier `json:"tier"`
}

// RetrievalMode labels the grounding quality a query actually achieved.
type RetrievalMode string

const (
	ModeVector  RetrievalMode = "vector"
	ModeKeyword RetrievalMode = "keyword"
	ModeDirect  RetrievalMode = "direct"
)

// Citation ties a span of a generated answer back to a source chunk.
type Citation struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	ArticleRef string  `json:"article_ref,omitempty"`
	Similarity float64 `json:"similarity"`
}
