package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// RedisProvider reads tenant catalogs maintained by the admin surface. A
// missing key is an empty catalog, not an error; the classifier turns an
// empty intent catalog into a ConfigurationError before any external call.
type RedisProvider struct {
	rdb redis.Cmdable
}

func NewRedisProvider(rdb redis.Cmdable) *RedisProvider {
	return &RedisProvider{rdb: rdb}
}

func intentsKey(orgID string) string {
	return fmt.Sprintf("catalog:%s:intents", orgID)
}

func specialistsKey(orgID string) string {
	return fmt.Sprintf("catalog:%s:specialists", orgID)
}

func (p *RedisProvider) Intents(ctx context.Context, orgID string) ([]model.Intent, error) {
	var intents []model.Intent
	if err := p.load(ctx, intentsKey(orgID), &intents); err != nil {
		return nil, err
	}
	return intents, nil
}

func (p *RedisProvider) Specialists(ctx context.Context, orgID string) ([]model.Specialist, error) {
	var specialists []model.Specialist
	if err := p.load(ctx, specialistsKey(orgID), &specialists); err != nil {
		return nil, err
	}
	return specialists, nil
}

// SeedIntents replaces the tenant's intent catalog. Used by seeding tools,
// not by the routing path.
func (p *RedisProvider) SeedIntents(ctx context.Context, orgID string, intents []model.Intent) error {
	return p.store(ctx, intentsKey(orgID), intents)
}

// SeedSpecialists replaces the tenant's specialist catalog.
func (p *RedisProvider) SeedSpecialists(ctx context.Context, orgID string, specialists []model.Specialist) error {
	return p.store(ctx, specialistsKey(orgID), specialists)
}

func (p *RedisProvider) load(ctx context.Context, key string, out any) error {
	raw, err := p.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load catalog")
		return errx.WrapRedis(err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode catalog %s: %w", key, err)
	}
	return nil
}

func (p *RedisProvider) store(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode catalog %s: %w", key, err)
	}
	if err := p.rdb.Set(ctx, key, b, 0).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ Provider = (*RedisProvider)(nil)
