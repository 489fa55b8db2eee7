package knowledge

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/parceldesk/core/internal/engine/graph/prompts"
	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// DefaultSnippetCap bounds how many ranked chunks feed one summary, keeping
// prompt size and cost bounded regardless of how many were retrieved.
const DefaultSnippetCap = 5

// Summarizer condenses ranked policy chunks into a short rule list relevant
// to the query. Summarization is best-effort: when the generation service is
// unavailable it falls back to a verbatim bullet list of the top chunks
// rather than failing the pipeline.
type Summarizer struct {
	chatModel  einomodel.BaseChatModel
	snippetCap int
}

func NewSummarizer(chatModel einomodel.BaseChatModel, cfg model.RetrievalConfig) *Summarizer {
	n := cfg.SnippetCap
	if n <= 0 {
		n = DefaultSnippetCap
	}
	return &Summarizer{chatModel: chatModel, snippetCap: n}
}

// Summarize caps input to the top ranked chunks and produces the rule list.
// UsedChunks on the result are exactly the chunks that contributed, in their
// original ranking order, for traceability in run logs.
func (s *Summarizer) Summarize(ctx context.Context, chunks []model.KnowledgeChunk, query string) *model.KnowledgeSummary {
	if len(chunks) == 0 {
		return nil
	}

	top := chunks
	if len(top) > s.snippetCap {
		top = top[:s.snippetCap]
	}

	summary, err := s.generate(ctx, top, query)
	if err != nil {
		logx.Warn().Err(err).Msg("summarizer unavailable; falling back to verbatim snippets")
		summary = verbatimBullets(top)
	}

	return &model.KnowledgeSummary{
		Summary:    summary,
		UsedChunks: top,
	}
}

func (s *Summarizer) generate(ctx context.Context, top []model.KnowledgeChunk, query string) (string, error) {
	if s.chatModel == nil {
		return "", fmt.Errorf("no summarizer model configured")
	}

	var b strings.Builder
	b.WriteString("Customer question:\n")
	b.WriteString(query)
	b.WriteString("\n\nRanked policy snippets:\n")
	for i, ch := range top {
		b.WriteString(fmt.Sprintf("%d. [%s] %s\n%s\n\n", i+1, ch.ID, ch.Title, strings.TrimSpace(ch.Content)))
	}

	out, err := s.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(prompts.SummarizerSystem()),
		schema.UserMessage(b.String()),
	})
	if err != nil {
		return "", fmt.Errorf("summarizer generate: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("summarizer returned empty content")
	}
	return strings.TrimSpace(out.Content), nil
}

// verbatimBullets renders the degraded summary when generation is down.
func verbatimBullets(top []model.KnowledgeChunk) string {
	var b strings.Builder
	for _, ch := range top {
		b.WriteString("- " + ch.Title + ": " + strings.TrimSpace(ch.Content) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
