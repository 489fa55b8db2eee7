package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

// Query describes one retrieval request against the knowledge corpus.
type Query struct {
	Text            string
	SpecialistScope string
	IntentScope     string
}

// Store returns ranked candidate policy chunks for a free-text query.
type Store interface {
	Retrieve(ctx context.Context, q Query) ([]model.KnowledgeChunk, error)
}

// RedisStore keeps the knowledge corpus in Redis: one JSON value per chunk
// plus id sets for membership and, when the scoped index capability is on,
// per-scope id sets used as the index-level pre-filter. Ranking is cosine
// similarity computed in-process over the candidate embeddings.
type RedisStore struct {
	rdb           redis.Cmdable
	embedder      Embedder
	orgID         string
	maxCandidates int

	// scopedIndex marks that per-scope id sets are maintained and may be used
	// to narrow the candidate set before ranking. The in-process FilterScoped
	// pass remains the source of truth either way.
	scopedIndex bool
}

const defaultMaxCandidates = 20

func NewRedisStore(rdb redis.Cmdable, embedder Embedder, orgID string, cfg model.RetrievalConfig) *RedisStore {
	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	return &RedisStore{
		rdb:           rdb,
		embedder:      embedder,
		orgID:         orgID,
		maxCandidates: maxCandidates,
		scopedIndex:   true,
	}
}

func (s *RedisStore) allKey() string {
	return fmt.Sprintf("kb:%s:chunks", s.orgID)
}

func (s *RedisStore) chunkKey(id string) string {
	return fmt.Sprintf("kb:%s:chunk:%s", s.orgID, id)
}

func (s *RedisStore) globalScopeKey() string {
	return fmt.Sprintf("kb:%s:scope:global", s.orgID)
}

func (s *RedisStore) specialistScopeKey(id string) string {
	return fmt.Sprintf("kb:%s:scope:specialist:%s", s.orgID, id)
}

func (s *RedisStore) intentScopeKey(id string) string {
	return fmt.Sprintf("kb:%s:scope:intent:%s", s.orgID, id)
}

// Upsert stores a chunk, embedding its content first when no embedding is
// attached. This is the ingestion-path contract; the routing engine itself
// only reads.
func (s *RedisStore) Upsert(ctx context.Context, chunk model.KnowledgeChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk id is required")
	}
	if len(chunk.Embedding) == 0 {
		vec, err := s.embedder.Embed(ctx, chunk.Title+"\n"+chunk.Content)
		if err != nil {
			return err
		}
		chunk.Embedding = vec
	}

	b, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.chunkKey(chunk.ID), b, 0)
	pipe.SAdd(ctx, s.allKey(), chunk.ID)
	switch {
	case chunk.ScopeSpecialistID != "":
		pipe.SAdd(ctx, s.specialistScopeKey(chunk.ScopeSpecialistID), chunk.ID)
	case chunk.ScopeIntentID != "":
		pipe.SAdd(ctx, s.intentScopeKey(chunk.ScopeIntentID), chunk.ID)
	default:
		pipe.SAdd(ctx, s.globalScopeKey(), chunk.ID)
	}
	if chunk.ScopeSpecialistID != "" && chunk.ScopeIntentID != "" {
		pipe.SAdd(ctx, s.intentScopeKey(chunk.ScopeIntentID), chunk.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

// Retrieve embeds the query, ranks candidates by cosine similarity, and
// applies the authoritative in-process scope filter. Failures surface as
// RetrievalUnavailable; the caller degrades to an empty knowledge context.
func (s *RedisStore) Retrieve(ctx context.Context, q Query) ([]model.KnowledgeChunk, error) {
	queryVec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	ids, err := s.candidateIDs(ctx, q)
	if err != nil {
		return nil, errx.Retrieval(fmt.Errorf("list candidates: %w", err))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := make([]model.KnowledgeChunk, 0, len(ids))
	for _, id := range ids {
		raw, gerr := s.rdb.Get(ctx, s.chunkKey(id)).Result()
		if gerr == redis.Nil {
			continue // id set and chunk value can drift; skip the orphan
		}
		if gerr != nil {
			return nil, errx.Retrieval(fmt.Errorf("load chunk %s: %w", id, gerr))
		}
		var ch model.KnowledgeChunk
		if uerr := json.Unmarshal([]byte(raw), &ch); uerr != nil {
			logx.Warn().Str("chunk_id", id).Err(uerr).Msg("skipping undecodable knowledge chunk")
			continue
		}
		ch.Similarity = cosineSimilarity(queryVec, ch.Embedding)
		ch.Embedding = nil
		chunks = append(chunks, ch)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})
	if len(chunks) > s.maxCandidates {
		chunks = chunks[:s.maxCandidates]
	}

	filtered := FilterScoped(chunks, q.SpecialistScope, q.IntentScope)

	logx.Debug().
		Int("candidates", len(chunks)).
		Int("eligible", len(filtered)).
		Str("specialist_scope", q.SpecialistScope).
		Str("intent_scope", q.IntentScope).
		Msg("knowledge retrieval complete")

	return filtered, nil
}

// candidateIDs narrows the candidate set at the index level when the scoped
// index capability is available and a scope was requested; otherwise the full
// corpus is ranked.
func (s *RedisStore) candidateIDs(ctx context.Context, q Query) ([]string, error) {
	if !s.scopedIndex || (q.SpecialistScope == "" && q.IntentScope == "") {
		return s.rdb.SMembers(ctx, s.allKey()).Result()
	}

	keys := []string{s.globalScopeKey()}
	if q.SpecialistScope != "" {
		keys = append(keys, s.specialistScopeKey(q.SpecialistScope))
	}
	if q.IntentScope != "" {
		keys = append(keys, s.intentScopeKey(q.IntentScope))
	}
	return s.rdb.SUnion(ctx, keys...).Result()
}
