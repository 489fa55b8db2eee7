package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceldesk/core/internal/engine/model"
)

func scopedChunks() []model.KnowledgeChunk {
	return []model.KnowledgeChunk{
		{ID: "global-1", Similarity: 0.9},
		{ID: "refund-spec", ScopeSpecialistID: "refund-specialist", Similarity: 0.8},
		{ID: "other-spec", ScopeSpecialistID: "tracking-specialist", Similarity: 0.7},
		{ID: "refund-intent", ScopeIntentID: "refund", Similarity: 0.6},
		{ID: "other-intent", ScopeIntentID: "track_parcel", Similarity: 0.5},
	}
}

func TestFilterScopedSpecialistMustMatch(t *testing.T) {
	out := FilterScoped(scopedChunks(), "refund-specialist", "refund")

	ids := chunkIDs(out)
	assert.Equal(t, []string{"global-1", "refund-spec", "refund-intent"}, ids)
}

func TestFilterScopedNoSpecialistRequestedExcludesSpecialistScoped(t *testing.T) {
	out := FilterScoped(scopedChunks(), "", "refund")

	ids := chunkIDs(out)
	assert.NotContains(t, ids, "refund-spec")
	assert.NotContains(t, ids, "other-spec")
	assert.Contains(t, ids, "global-1")
}

func TestFilterScopedIntentScopeIsLenient(t *testing.T) {
	// no intent requested: intent-scoped chunks name nothing different, so
	// they stay eligible
	out := FilterScoped(scopedChunks(), "refund-specialist", "")

	ids := chunkIDs(out)
	assert.Contains(t, ids, "refund-intent")
	assert.Contains(t, ids, "other-intent")
}

func TestFilterScopedPreservesRankingOrder(t *testing.T) {
	out := FilterScoped(scopedChunks(), "refund-specialist", "refund")
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Similarity, out[i].Similarity)
	}
}

func TestFilterScopedIdempotent(t *testing.T) {
	once := FilterScoped(scopedChunks(), "refund-specialist", "refund")
	twice := FilterScoped(once, "refund-specialist", "refund")
	require.Equal(t, once, twice)
}

func TestFilterScopedEmptyInput(t *testing.T) {
	out := FilterScoped(nil, "refund-specialist", "refund")
	assert.Empty(t, out)
}

func chunkIDs(chunks []model.KnowledgeChunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		ids = append(ids, ch.ID)
	}
	return ids
}
