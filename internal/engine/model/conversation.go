package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository persists per-ticket conversation turns and the
// previous routing outcome. It is consumed by the serving surface, which
// loads history and prior-turn memory and passes both into the engine
// explicitly; the engine itself never reads ambient session state.
type ConversationRepository interface {
	// AddMessage appends a turn to the ticket's conversation history.
	AddMessage(ctx context.Context, ticketID string, message *schema.Message) error

	// LoadHistory retrieves the conversation history for a ticket.
	LoadHistory(ctx context.Context, ticketID string) (*ConversationHistory, error)

	// SavePriorTurn stores the routing outcome of the turn just completed.
	SavePriorTurn(ctx context.Context, ticketID string, turn PriorTurn) error

	// LoadPriorTurn returns the previous turn's routing outcome, or nil on a
	// first turn.
	LoadPriorTurn(ctx context.Context, ticketID string) (*PriorTurn, error)

	// ClearHistory removes all conversation state for a ticket.
	ClearHistory(ctx context.Context, ticketID string) error
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	TicketID string
	Messages []*schema.Message
}
