package runlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parceldesk/core/internal/engine/model"
)

// MemoryRecorder keeps runs and events in memory. Used in tests and local
// runs without a Redis sink.
type MemoryRecorder struct {
	mu     sync.Mutex
	Runs   []model.RunRecord
	Events []model.TicketEvent
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, rec model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.Runs = append(m.Runs, rec)
	return nil
}

func (m *MemoryRecorder) RecordEvent(_ context.Context, ticketID, eventType, summary, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, model.TicketEvent{
		TicketID:  ticketID,
		EventType: eventType,
		Summary:   summary,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

var _ Recorder = (*MemoryRecorder)(nil)
