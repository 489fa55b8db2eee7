package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/parceldesk/core/internal/catalog"
	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/conversations"
	"github.com/parceldesk/core/internal/engine/graph/parsers"
	"github.com/parceldesk/core/internal/engine/graph/prompts"
	"github.com/parceldesk/core/internal/engine/knowledge"
	"github.com/parceldesk/core/internal/engine/model"
	"github.com/parceldesk/core/internal/engine/router"
	"github.com/parceldesk/core/internal/engine/tracking"
	logx "github.com/parceldesk/core/pkg/logger"
)

// Graph node names.
const (
	NodeInputConverter       = "InputConverter"
	NodeClassifierChatModel  = "ClassifierChatModel"
	NodeClassificationParser = "ClassificationParser"
	NodeRouter               = "Router"
	NodeEnricher             = "Enricher"
	NodeReplyAssembler       = "ReplyAssembler"
	NodeResponseChatModel    = "ResponseChatModel"
	NodeFinalizer            = "Finalizer"
)

// NewInputConverterPreHandler seeds the pipeline state from the public input.
func NewInputConverterPreHandler() func(context.Context, model.TicketQuery, *model.PipelineState) (model.TicketQuery, error) {
	return func(ctx context.Context, in model.TicketQuery, s *model.PipelineState) (model.TicketQuery, error) {
		s.TicketID = in.TicketID
		s.Query = in.Query
		s.TrackingID = in.TrackingID
		s.History = in.History
		s.PriorTurn = in.PriorTurn
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode fetches the tenant catalogs, validates them, and
// renders the classifier input. An empty intent catalog is a fatal
// configuration error raised before any external call is made.
func NewInputConverterNode(
	provider catalog.Provider,
	orgID string,
	mm *conversations.MessagesManager,
	persona model.PersonaConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.TicketQuery) ([]*schema.Message, error) {
		intentList, err := provider.Intents(ctx, orgID)
		if err != nil {
			return nil, errx.Configuration(fmt.Errorf("load intent catalog: %w", err))
		}
		specialistList, err := provider.Specialists(ctx, orgID)
		if err != nil {
			return nil, errx.Configuration(fmt.Errorf("load specialist catalog: %w", err))
		}

		intents := model.NewIntentCatalog(intentList)
		specialists := model.NewSpecialistCatalog(specialistList)
		if intents.Len() == 0 {
			return nil, errx.Configuration(fmt.Errorf("intent catalog is empty for org %q", orgID))
		}

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.Intents = intents
			s.Specialists = specialists
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderClassifierSystem(ctx, intents, persona)
		if err != nil {
			return nil, errx.Configuration(fmt.Errorf("render classifier prompt: %w", err))
		}

		analysisBlock := mm.BuildClassifierContext(input.History, input.Query)

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(analysisBlock),
		}, nil
	})
}

// NewCostPostHandler computes and logs usage cost for a chat model node and
// accumulates the running total into state.
func NewCostPostHandler(nodeName, modelName string) func(context.Context, *schema.Message, *model.PipelineState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.PipelineState) (*schema.Message, error) {
		if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
			return out, nil
		}
		pricing := model.ResolvePricing(modelName)
		inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
		state.TotalCostUSD += totalC

		logx.TicketDebug(state.TicketID).
			Str("node", nodeName).
			Str("model", modelName).
			Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
			Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
		return out, nil
	}
}

// NewParserNode extracts the intent classification from the raw model output.
func NewParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.Classification, error) {
		var intents *model.IntentCatalog
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			intents = s.Intents
			return nil
		}); err != nil {
			return model.Classification{}, fmt.Errorf("failed to access state: %w", err)
		}

		result, err := parsers.ParseClassification(resp.Content, intents)
		if err != nil {
			logx.Error().Err(err).Msg("Error parsing classification output")
			return model.Classification{}, err
		}
		return *result, nil
	})
}

// NewParserPostHandler stores the classification for downstream nodes.
func NewParserPostHandler() func(context.Context, model.Classification, *model.PipelineState) (model.Classification, error) {
	return func(ctx context.Context, out model.Classification, state *model.PipelineState) (model.Classification, error) {
		c := out
		state.Classification = &c
		logx.TicketDebug(state.TicketID).
			Str("intent_id", out.IntentID).
			Float64("confidence", out.Confidence).
			Msg("classification parsed")
		return out, nil
	}
}

// NewRouterNode resolves the effective intent and specialist for this turn
// using the confidence gate and the prior turn memory.
func NewRouterNode(r *router.Router) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, c model.Classification) (*model.RoutingDecision, error) {
		var decision model.RoutingDecision
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			decision = r.Decide(c, s.Intents, s.Specialists, s.PriorTurn)
			s.Decision = &decision
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return &decision, nil
	})
}

// EnricherDeps carries the optional enrichment collaborators. A nil Tracker or
// Store disables that enrichment path without error.
type EnricherDeps struct {
	Tracker    *tracking.Adapter
	Store      knowledge.Store
	Summarizer *knowledge.Summarizer
}

// NewEnricherNode runs shipment tracking and knowledge retrieval concurrently.
// Both paths are best-effort: a failure appends a rationale note and the reply
// proceeds without that context, never failing the pipeline.
func NewEnricherNode(deps EnricherDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, decision *model.RoutingDecision) (*model.RoutingDecision, error) {
		var (
			query      string
			trackingID string
		)
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			query = s.Query
			trackingID = s.TrackingID
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		intentName := ""
		specialistScope := ""
		intentScope := ""
		if decision.EffectiveIntent != nil {
			intentName = decision.EffectiveIntent.Name
			intentScope = decision.EffectiveIntent.ID
		}
		if decision.EffectiveSpecialist != nil {
			specialistScope = decision.EffectiveSpecialist.ID
		}

		var (
			snapshot *model.TrackingSnapshot
			summary  *model.KnowledgeSummary
			notes    []string
		)

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			snap, note := trackShipment(gctx, deps.Tracker, query, trackingID, intentName)
			snapshot = snap
			if note != "" {
				notes = append(notes, note)
			}
			return nil
		})

		var knowledgeNote string
		g.Go(func() error {
			summary, knowledgeNote = retrieveKnowledge(gctx, deps.Store, deps.Summarizer, query, specialistScope, intentScope)
			return nil
		})

		// Both closures always return nil; errgroup is used for structured
		// concurrency and context propagation only.
		_ = g.Wait()

		if knowledgeNote != "" {
			notes = append(notes, knowledgeNote)
		}
		for _, n := range notes {
			decision.Note(n)
		}

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.Tracking = snapshot
			s.Knowledge = summary
			s.Decision = decision
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return decision, nil
	})
}

// trackShipment resolves a snapshot when the turn asks for tracking and an
// identifier is available. The returned note, when non-empty, explains a
// degraded outcome for the rationale trail.
func trackShipment(ctx context.Context, tracker *tracking.Adapter, query, explicitID, intentName string) (*model.TrackingSnapshot, string) {
	if !tracking.ShouldTrack(query, intentName) {
		return nil, ""
	}
	if tracker == nil {
		return nil, "tracking lookup skipped; provider not configured"
	}

	id := explicitID
	if id == "" {
		id = tracking.ExtractTrackingID(query)
	}
	if id == "" {
		return nil, "tracking requested but no tracking id found in the message"
	}

	snap, err := tracker.TrackOnce(ctx, id, "")
	if err != nil {
		logx.Warn().Err(err).Str("tracking_id", id).Msg("tracking enrichment failed; replying without shipment data")
		return nil, "tracking unavailable; replying without shipment data"
	}
	return snap, ""
}

// retrieveKnowledge ranks and summarizes policy chunks for the turn. Failures
// degrade to an empty knowledge context with a rationale note.
func retrieveKnowledge(ctx context.Context, store knowledge.Store, summarizer *knowledge.Summarizer, query, specialistScope, intentScope string) (*model.KnowledgeSummary, string) {
	if store == nil || summarizer == nil {
		return nil, ""
	}

	chunks, err := store.Retrieve(ctx, knowledge.Query{
		Text:            query,
		SpecialistScope: specialistScope,
		IntentScope:     intentScope,
	})
	if err != nil {
		logx.Warn().Err(err).Msg("knowledge retrieval failed; replying without policy guidance")
		return nil, "knowledge retrieval unavailable; replying without policy guidance"
	}
	if len(chunks) == 0 {
		return nil, ""
	}

	return summarizer.Summarize(ctx, chunks, query), ""
}

// NewReplyAssemblerNode builds the final generation input: the layered system
// prompt plus the conversation turns.
func NewReplyAssemblerNode(mm *conversations.MessagesManager, persona model.PersonaConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, decision *model.RoutingDecision) ([]*schema.Message, error) {
		var (
			query    string
			history  []*schema.Message
			snapshot *model.TrackingSnapshot
			summary  *model.KnowledgeSummary
		)
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			query = s.Query
			history = s.History
			snapshot = s.Tracking
			summary = s.Knowledge
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderReplySystem(ctx, persona, decision, summary, snapshot)
		if err != nil {
			return nil, fmt.Errorf("render reply prompt: %w", err)
		}

		return mm.BuildReplyMessages(systemPrompt, history, query), nil
	})
}

// NewFinalizerNode folds the generated reply and the accumulated state into
// the engine's output contract.
func NewFinalizerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, reply *schema.Message) (*model.ReplyOutput, error) {
		if reply == nil || strings.TrimSpace(reply.Content) == "" {
			return nil, errx.Generation(fmt.Errorf("model returned empty reply"))
		}

		out := &model.ReplyOutput{Reply: strings.TrimSpace(reply.Content)}
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			out.TicketID = s.TicketID
			out.CostUSD = s.TotalCostUSD
			if d := s.Decision; d != nil {
				out.Rationale = d.Rationale
				out.IsFallback = d.IsFallback
				if d.EffectiveIntent != nil {
					out.IntentID = d.EffectiveIntent.ID
				}
				if d.EffectiveSpecialist != nil {
					out.SpecialistID = d.EffectiveSpecialist.ID
				}
				out.Status = statusFor(d)
			}
			out.KnowledgeSources = s.Knowledge.SourceIDs()
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return out, nil
	})
}

// statusFor maps a routing decision to the terminal run status.
func statusFor(d *model.RoutingDecision) model.RunStatus {
	switch {
	case d.Handover:
		return model.RunEscalated
	case d.IsFallback:
		return model.RunFallback
	default:
		return model.RunSuccess
	}
}
