package model

// KnowledgeChunk is a discrete, independently retrievable policy passage.
// Chunks are read-only within a routing call; ranking order must be preserved
// until summarization.
type KnowledgeChunk struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Content           string    `json:"content"`
	ScopeSpecialistID string    `json:"scope_specialist_id,omitempty"`
	ScopeIntentID     string    `json:"scope_intent_id,omitempty"`
	Embedding         []float32 `json:"embedding,omitempty"`
	Similarity        float64   `json:"similarity,omitempty"`
}

// KnowledgeSummary is the condensed rule list handed to the reply composer.
// UsedChunks are exactly the chunks that contributed to the summary.
type KnowledgeSummary struct {
	Summary    string
	UsedChunks []KnowledgeChunk
}

// SourceIDs returns the ids of the contributing chunks for run logging.
func (s *KnowledgeSummary) SourceIDs() []string {
	if s == nil || len(s.UsedChunks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.UsedChunks))
	for _, ch := range s.UsedChunks {
		ids = append(ids, ch.ID)
	}
	return ids
}
