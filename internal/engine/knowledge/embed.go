package knowledge

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	errx "github.com/parceldesk/core/internal/core/error"
	logx "github.com/parceldesk/core/pkg/logger"
)

// Embedder maps text to a vector representation. The same contract serves
// query embedding at retrieval time and chunk embedding on the ingestion path.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder produces embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", string(e.model)).Msg("embedding request failed")
		return nil, errx.Retrieval(fmt.Errorf("create embedding: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, errx.Retrieval(fmt.Errorf("no embeddings returned"))
	}
	return resp.Data[0].Embedding, nil
}

// cosineSimilarity computes cosine similarity between two vectors, 0 when the
// dimensions disagree.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
