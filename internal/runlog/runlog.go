// Package runlog records run outcomes and intermediate ticket events for
// observability. Recording is side-effecting only: failures are logged and
// swallowed so an unavailable sink can never fail the reply pipeline.
package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// Recorder is the append-only run/event sink contract.
type Recorder interface {
	Record(ctx context.Context, rec model.RunRecord) error
	RecordEvent(ctx context.Context, ticketID, eventType, summary, detail string) error
}

// RedisRecorder appends run records and ticket events to Redis lists.
type RedisRecorder struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisRecorder(rdb redis.Cmdable, ttl time.Duration) *RedisRecorder {
	return &RedisRecorder{rdb: rdb, ttl: ttl}
}

func (r *RedisRecorder) runsKey() string {
	return "runlog:runs"
}

func (r *RedisRecorder) eventsKey(ticketID string) string {
	return fmt.Sprintf("runlog:ticket:%s:events", ticketID)
}

func (r *RedisRecorder) Record(ctx context.Context, rec model.RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if err := r.rdb.RPush(ctx, r.runsKey(), b).Err(); err != nil {
		logx.Error().Err(err).Str("ticket_id", rec.TicketID).Msg("failed to append run record")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisRecorder) RecordEvent(ctx context.Context, ticketID, eventType, summary, detail string) error {
	ev := model.TicketEvent{
		TicketID:  ticketID,
		EventType: eventType,
		Summary:   summary,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal ticket event: %w", err)
	}

	key := r.eventsKey(ticketID)
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append ticket event")
		return errx.WrapRedis(err)
	}
	if r.ttl > 0 {
		if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("key", key).Msg("failed to set TTL on ticket events")
		}
	}
	return nil
}

var _ Recorder = (*RedisRecorder)(nil)
