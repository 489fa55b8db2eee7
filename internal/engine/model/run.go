package model

import "time"

// RunStatus is the terminal outcome of one routing run.
type RunStatus string

const (
	RunSuccess   RunStatus = "success"
	RunFallback  RunStatus = "fallback"
	RunEscalated RunStatus = "escalated"
)

// RunRecord is emitted once at the end of a successful or degraded run and
// never updated in place.
type RunRecord struct {
	ID               string    `json:"id"`
	TicketID         string    `json:"ticket_id"`
	IntentID         string    `json:"intent_id,omitempty"`
	SpecialistID     string    `json:"specialist_id,omitempty"`
	InputSummary     string    `json:"input_summary"`
	OutputSummary    string    `json:"output_summary"`
	KnowledgeSources []string  `json:"knowledge_sources,omitempty"`
	Status           RunStatus `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// TicketEvent is a discrete intermediate observation recorded alongside runs.
type TicketEvent struct {
	TicketID  string    `json:"ticket_id"`
	EventType string    `json:"event_type"`
	Summary   string    `json:"summary"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
