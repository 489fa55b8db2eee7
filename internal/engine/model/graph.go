package model

import (
	"github.com/cloudwego/eino/schema"
)

// PipelineState stores per-invocation state for the Eino graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as it is never touched outside handlers.
type PipelineState struct {
	TicketID       string
	Query          string
	TrackingID     string // explicit override from the caller, if any
	History        []*schema.Message
	PriorTurn      *PriorTurn
	Intents        *IntentCatalog    // fetched fresh per call by the input node
	Specialists    *SpecialistCatalog
	Classification *Classification // set by parser post-handler
	Decision       *RoutingDecision
	Tracking       *TrackingSnapshot
	Knowledge      *KnowledgeSummary

	// Accumulated total LLM cost (USD) across model invocations for this run
	TotalCostUSD float64
}

// TicketQuery is the public input for one routing call. History and PriorTurn
// are supplied explicitly by the caller; the engine keeps no ambient session
// state.
type TicketQuery struct {
	TicketID  string            `json:"ticket_id"`
	Query     string            `json:"query"`
	History   []*schema.Message `json:"history,omitempty"`
	PriorTurn *PriorTurn        `json:"prior_turn,omitempty"`
	// TrackingID optionally overrides extraction from the message text.
	TrackingID string `json:"tracking_id,omitempty"`
}

// ReplyOutput is the engine's only output contract: the final reply text plus
// routing and action metadata.
type ReplyOutput struct {
	TicketID         string    `json:"ticket_id"`
	Reply            string    `json:"reply"`
	IntentID         string    `json:"intent_id,omitempty"`
	SpecialistID     string    `json:"specialist_id,omitempty"`
	Rationale        []string  `json:"rationale"`
	IsFallback       bool      `json:"is_fallback"`
	Status           RunStatus `json:"status"`
	KnowledgeSources []string  `json:"knowledge_sources,omitempty"`
	CostUSD          float64   `json:"cost_usd,omitempty"`
}
