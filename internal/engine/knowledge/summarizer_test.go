package knowledge

import (
	"context"
	"fmt"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceldesk/core/internal/engine/model"
)

// fakeChatModel returns canned content or fails, standing in for the
// generation service.
type fakeChatModel struct {
	content string
	err     error
	calls   int
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported in tests")
}

func rankedChunks(n int) []model.KnowledgeChunk {
	chunks := make([]model.KnowledgeChunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, model.KnowledgeChunk{
			ID:         fmt.Sprintf("chunk-%d", i),
			Title:      fmt.Sprintf("Policy %d", i),
			Content:    "Refunds are issued within 14 days if the parcel was damaged in transit.",
			Similarity: 1.0 - float64(i)*0.1,
		})
	}
	return chunks
}

func TestSummarizeCapsInputChunks(t *testing.T) {
	fm := &fakeChatModel{content: "- rule one\n- rule two\n- rule three"}
	s := NewSummarizer(fm, model.RetrievalConfig{SnippetCap: 5})

	out := s.Summarize(context.Background(), rankedChunks(8), "can I get a refund?")

	require.NotNil(t, out)
	assert.LessOrEqual(t, len(out.UsedChunks), 5)
	assert.Equal(t, "- rule one\n- rule two\n- rule three", out.Summary)
}

func TestSummarizeUsedChunksKeepRankingOrder(t *testing.T) {
	fm := &fakeChatModel{content: "- rule"}
	s := NewSummarizer(fm, model.RetrievalConfig{SnippetCap: 5})

	out := s.Summarize(context.Background(), rankedChunks(8), "refund?")

	require.NotNil(t, out)
	require.Len(t, out.UsedChunks, 5)
	for i, ch := range out.UsedChunks {
		assert.Equal(t, fmt.Sprintf("chunk-%d", i), ch.ID)
	}
	for i := 1; i < len(out.UsedChunks); i++ {
		assert.GreaterOrEqual(t, out.UsedChunks[i-1].Similarity, out.UsedChunks[i].Similarity)
	}
}

func TestSummarizeFallsBackOnGenerationError(t *testing.T) {
	fm := &fakeChatModel{err: fmt.Errorf("model unreachable")}
	s := NewSummarizer(fm, model.RetrievalConfig{SnippetCap: 3})

	out := s.Summarize(context.Background(), rankedChunks(4), "refund?")

	require.NotNil(t, out)
	assert.Len(t, out.UsedChunks, 3)
	// degraded output is a verbatim bullet list of the top chunks
	assert.Contains(t, out.Summary, "- Policy 0:")
	assert.Contains(t, out.Summary, "- Policy 2:")
	assert.NotContains(t, out.Summary, "Policy 3")
}

func TestSummarizeNilModelFallsBack(t *testing.T) {
	s := NewSummarizer(nil, model.RetrievalConfig{SnippetCap: 5})

	out := s.Summarize(context.Background(), rankedChunks(2), "refund?")

	require.NotNil(t, out)
	assert.Contains(t, out.Summary, "- Policy 0:")
}

func TestSummarizeEmptyChunksReturnsNil(t *testing.T) {
	fm := &fakeChatModel{content: "- rule"}
	s := NewSummarizer(fm, model.RetrievalConfig{SnippetCap: 5})

	assert.Nil(t, s.Summarize(context.Background(), nil, "refund?"))
	assert.Zero(t, fm.calls)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}
