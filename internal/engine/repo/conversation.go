package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// RedisConversationRepository stores per-ticket conversation turns and the
// previous routing outcome in Redis, both expiring together on the
// conversation TTL.
type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) messagesKey(ticketID string) string {
	return fmt.Sprintf("ticket:%s:messages", ticketID)
}

func (r *RedisConversationRepository) priorTurnKey(ticketID string) string {
	return fmt.Sprintf("ticket:%s:prior_turn", ticketID)
}

func (r *RedisConversationRepository) AddMessage(ctx context.Context, ticketID string, message *schema.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("ticket_id", ticketID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.messagesKey(ticketID)

	// append message
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on conversation key")
		}
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, ticketID string) (*model.ConversationHistory, error) {
	key := r.messagesKey(ticketID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.ConversationHistory{TicketID: ticketID, Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("ticket_id", ticketID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.ConversationHistory{TicketID: ticketID, Messages: msgs}, nil
}

func (r *RedisConversationRepository) SavePriorTurn(ctx context.Context, ticketID string, turn model.PriorTurn) error {
	b, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal prior turn: %w", err)
	}
	key := r.priorTurnKey(ticketID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save prior turn")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) LoadPriorTurn(ctx context.Context, ticketID string) (*model.PriorTurn, error) {
	key := r.priorTurnKey(ticketID)
	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // first turn
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load prior turn")
		return nil, errx.WrapRedis(err)
	}
	var turn model.PriorTurn
	if err := json.Unmarshal([]byte(raw), &turn); err != nil {
		return nil, fmt.Errorf("unmarshal prior turn: %w", err)
	}
	return &turn, nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, ticketID string) error {
	if err := r.rdb.Del(ctx, r.messagesKey(ticketID), r.priorTurnKey(ticketID)).Err(); err != nil {
		logx.Error().Err(err).Str("ticket_id", ticketID).Msg("failed to delete conversation state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
