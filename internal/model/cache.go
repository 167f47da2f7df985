package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quarry0/quarry/internal/agent"
)

// contextWindow is how many trailing non-system messages feed the cache key.
// A longer window would make hits vanishingly rare; a shorter one would
// collide across genuinely different conversations.
const contextWindow = 5

// ContextKey derives the cache key for a history: a sha256 over the last
// five non-system messages, serialized with sorted keys so equal content
// always hashes identically.
func ContextKey(history []*ai.Message) string {
	var recent []*ai.Message
	for _, msg := range history {
		if msg.Role == ai.RoleSystem {
			continue
		}
		recent = append(recent, msg)
	}
	if len(recent) > contextWindow {
		recent = recent[len(recent)-contextWindow:]
	}

	entries := make([]map[string]any, 0, len(recent))
	for _, msg := range recent {
		entry := map[string]any{
			"role":    string(msg.Role),
			"content": msg.Text(),
		}
		var calls []map[string]any
		var results []map[string]any
		for _, part := range msg.Content {
			if part.ToolRequest != nil {
				calls = append(calls, map[string]any{
					"name":  part.ToolRequest.Name,
					"input": part.ToolRequest.Input,
				})
			}
			if part.ToolResponse != nil {
				results = append(results, map[string]any{
					"name":   part.ToolResponse.Name,
					"output": part.ToolResponse.Output,
				})
			}
		}
		if calls != nil {
			entry["tool_calls"] = calls
		}
		if results != nil {
			entry["tool_results"] = results
		}
		entries = append(entries, entry)
	}

	// Map keys sort during JSON encoding, so the serialization is stable.
	b, err := json.Marshal(entries)
	if err != nil {
		b = []byte{}
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Cache stores serialized decisions by context key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, model, response string) error
}

// cacheDB is the subset of pgxpool.Pool the store needs.
type cacheDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgCache persists cached responses in the llm_cache table.
type PgCache struct {
	db cacheDB
}

func NewPgCache(db cacheDB) *PgCache {
	return &PgCache{db: db}
}

func (c *PgCache) Get(ctx context.Context, key string) (string, bool, error) {
	var response string
	err := c.db.QueryRow(ctx,
		"SELECT response FROM llm_cache WHERE cache_key = $1", key).Scan(&response)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return response, true, nil
}

func (c *PgCache) Set(ctx context.Context, key, model, response string) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO llm_cache (cache_key, model, response)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE
		SET model = EXCLUDED.model, response = EXCLUDED.response, created_at = now()`,
		key, model, response)
	return err
}

// Invalidate drops one cached entry.
func (c *PgCache) Invalidate(ctx context.Context, key string) error {
	_, err := c.db.Exec(ctx, "DELETE FROM llm_cache WHERE cache_key = $1", key)
	return err
}

// CachedDecider serves decisions from the cache when the trailing
// conversation context has been seen before, and fills the cache on miss.
// Cache failures degrade to the inner decider; they never fail a turn.
type CachedDecider struct {
	inner     agent.Decider
	cache     Cache
	modelName string
	logger    *slog.Logger
}

func NewCachedDecider(inner agent.Decider, cache Cache, modelName string, logger *slog.Logger) *CachedDecider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDecider{inner: inner, cache: cache, modelName: modelName, logger: logger}
}

func (c *CachedDecider) Decide(ctx context.Context, history []*ai.Message) (*agent.Decision, error) {
	key := ContextKey(history)

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("cache lookup failed", "error", err)
	} else if ok {
		var d agent.Decision
		if err := json.Unmarshal([]byte(raw), &d); err == nil {
			c.logger.Debug("cache hit", "key", key)
			return &d, nil
		}
		c.logger.Warn("cached decision undecodable, ignoring", "key", key)
	}

	d, err := c.inner.Decide(ctx, history)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(d); err == nil {
		if err := c.cache.Set(ctx, key, c.modelName, string(raw)); err != nil {
			c.logger.Warn("cache store failed", "error", err)
		}
	}
	return d, nil
}
