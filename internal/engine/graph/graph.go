package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/parceldesk/core/internal/catalog"
	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/conversations"
	"github.com/parceldesk/core/internal/engine/graph/nodes"
	"github.com/parceldesk/core/internal/engine/graph/observers"
	"github.com/parceldesk/core/internal/engine/knowledge"
	"github.com/parceldesk/core/internal/engine/model"
	"github.com/parceldesk/core/internal/engine/router"
	"github.com/parceldesk/core/internal/engine/tracking"
	"github.com/parceldesk/core/internal/runlog"
	logx "github.com/parceldesk/core/pkg/logger"
)

// Runner executes one reply pipeline run for a public TicketQuery.
type Runner interface {
	Invoke(ctx context.Context, in model.TicketQuery) (*model.ReplyOutput, error)
}

// Config holds everything needed to compose the full reply graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs ChatModels
// and MessagesManager.
type Config struct {
	APIKey  string
	BaseURL string
	OrgID   string

	Router          model.RouterConfig
	ClassifierModel model.ClassifierModelConfig
	SummarizerModel model.SummarizerModelConfig
	ResponseModel   model.ResponseModelConfig
	Retrieval       model.RetrievalConfig
	Tracking        model.TrackingConfig
	Conversation    model.ConversationConfig
	Persona         model.PersonaConfig

	CatalogProvider  catalog.Provider
	KnowledgeStore   knowledge.Store   // optional; nil disables retrieval
	TrackingProvider tracking.Provider // optional; nil disables tracking
	Recorder         runlog.Recorder   // optional; nil disables run logging
}

// GraphConfig holds all configuration needed to build the graph.
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	Router          *router.Router
	Enricher        nodes.EnricherDeps
	CatalogProvider catalog.Provider
	OrgID           string
	Persona         model.PersonaConfig
}

// GraphBuilder handles the construction of the reply pipeline graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.TicketQuery, *model.ReplyOutput]
}

type graphRunner struct {
	runnable compose.Runnable[model.TicketQuery, *model.ReplyOutput]
	recorder runlog.Recorder
}

func (r *graphRunner) Invoke(ctx context.Context, in model.TicketQuery) (*model.ReplyOutput, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		r.recordFailure(ctx, in, err)
		return nil, err
	}

	r.recordRun(ctx, in, out)
	return out, nil
}

// recordRun appends the run record. Recording is log-and-continue: an
// unavailable sink never fails a reply that was already generated.
func (r *graphRunner) recordRun(ctx context.Context, in model.TicketQuery, out *model.ReplyOutput) {
	if r.recorder == nil || out == nil {
		return
	}
	rec := model.RunRecord{
		TicketID:         out.TicketID,
		IntentID:         out.IntentID,
		SpecialistID:     out.SpecialistID,
		InputSummary:     summarize(in.Query),
		OutputSummary:    summarize(out.Reply),
		KnowledgeSources: out.KnowledgeSources,
		Status:           out.Status,
	}
	if err := r.recorder.Record(ctx, rec); err != nil {
		logx.TicketWarn(out.TicketID).Err(err).Msg("failed to record run")
	}
	for _, note := range out.Rationale {
		if err := r.recorder.RecordEvent(ctx, out.TicketID, "routing_note", note, ""); err != nil {
			logx.TicketWarn(out.TicketID).Err(err).Msg("failed to record routing note")
			break
		}
	}
}

func (r *graphRunner) recordFailure(ctx context.Context, in model.TicketQuery, cause error) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordEvent(ctx, in.TicketID, "run_failed", "reply pipeline failed", cause.Error()); err != nil {
		logx.TicketWarn(in.TicketID).Err(err).Msg("failed to record run failure")
	}
}

// summarize truncates free text for run log storage.
func summarize(s string) string {
	const maxLen = 240
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// BuildReplyGraph composes ChatModels, MessagesManager, builds the graph, and
// returns a Runner.
func BuildReplyGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.CatalogProvider == nil {
		return nil, fmt.Errorf("catalog provider is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		ClassifierConfig: &cfg.ClassifierModel,
		SummarizerConfig: &cfg.SummarizerModel,
		RespConfig:       &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.Conversation)

	enricher := nodes.EnricherDeps{}
	if cfg.KnowledgeStore != nil {
		enricher.Store = cfg.KnowledgeStore
		enricher.Summarizer = knowledge.NewSummarizer(cms.Summarizer, cfg.Retrieval)
	}
	if cfg.TrackingProvider != nil && cfg.Tracking.Configured() {
		tracker, terr := tracking.NewAdapter(cfg.TrackingProvider, cfg.Tracking)
		if terr != nil {
			return nil, terr
		}
		enricher.Tracker = tracker
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		Router:          router.New(cfg.Router),
		Enricher:        enricher,
		CatalogProvider: cfg.CatalogProvider,
		OrgID:           cfg.OrgID,
		Persona:         cfg.Persona,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Reply graph built successfully")
	return &graphRunner{runnable: runnable, recorder: cfg.Recorder}, nil
}

// BuildGraph constructs and returns the compiled reply pipeline graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.TicketQuery, *model.ReplyOutput], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Classifier == nil || config.ChatModels.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Router == nil {
		return nil, fmt.Errorf("router is nil")
	}
	if config.CatalogProvider == nil {
		return nil, fmt.Errorf("catalog provider is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TicketQuery, *model.ReplyOutput](
			compose.WithGenLocalState(func(ctx context.Context) *model.PipelineState {
				return &model.PipelineState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph.
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.CatalogProvider, b.config.OrgID, b.config.MessagesManager, b.config.Persona),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeClassifierChatModel,
		nodes.WrapModelErrors(b.config.ChatModels.Classifier, errx.Classification),
		compose.WithStatePostHandler(nodes.NewCostPostHandler(nodes.NodeClassifierChatModel, b.config.ChatModels.ClassifierModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeClassificationParser,
		nodes.NewParserNode(),
		compose.WithStatePostHandler(nodes.NewParserPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeRouter,
		nodes.NewRouterNode(b.config.Router),
	)

	b.graph.AddLambdaNode(nodes.NodeEnricher,
		nodes.NewEnricherNode(b.config.Enricher),
	)

	b.graph.AddLambdaNode(nodes.NodeReplyAssembler,
		nodes.NewReplyAssemblerNode(b.config.MessagesManager, b.config.Persona),
	)

	b.graph.AddChatModelNode(nodes.NodeResponseChatModel,
		nodes.WrapModelErrors(b.config.ChatModels.Response, errx.Generation),
		compose.WithStatePostHandler(nodes.NewCostPostHandler(nodes.NodeResponseChatModel, b.config.ChatModels.ResponseModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeFinalizer,
		nodes.NewFinalizerNode(),
	)
}

// addEdges creates the linear flow between nodes.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeClassifierChatModel},
		{nodes.NodeClassifierChatModel, nodes.NodeClassificationParser},
		{nodes.NodeClassificationParser, nodes.NodeRouter},
		{nodes.NodeRouter, nodes.NodeEnricher},
		{nodes.NodeEnricher, nodes.NodeReplyAssembler},
		{nodes.NodeReplyAssembler, nodes.NodeResponseChatModel},
		{nodes.NodeResponseChatModel, nodes.NodeFinalizer},
		{nodes.NodeFinalizer, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TicketQuery, *model.ReplyOutput], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
