package memsubstrate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/memochater/core/internal/kind"
)

// ShortTermCache is an optional Redis read-through cache in front of a
// ShortTermFileRepository. It exists purely to avoid re-reading
// and re-parsing a topic's vector file on every turn; the file on disk
// remains the source of truth and the cache is invalidated on every write.
type ShortTermCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewShortTermCache builds a cache bound to client with the given per-key
// TTL. Passing a nil client is invalid; callers that want no caching should
// simply not construct a ShortTermCache and call the repository directly.
func NewShortTermCache(client redis.UniversalClient, ttl time.Duration) *ShortTermCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ShortTermCache{client: client, ttl: ttl}
}

func (c *ShortTermCache) key(assistantID, topicID string) string {
	return "short_term_vectors:" + assistantID + ":" + topicID
}

// Get returns the cached file, or (nil, nil) on a cache miss.
func (c *ShortTermCache) Get(ctx context.Context, assistantID, topicID string) (*ShortTermVectorFile, error) {
	raw, err := c.client.Get(ctx, c.key(assistantID, topicID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, kind.New(kind.Memory, "Get", err)
	}
	var file ShortTermVectorFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil
	}
	return &file, nil
}

// Set stores file for topic with the cache's configured TTL.
func (c *ShortTermCache) Set(ctx context.Context, assistantID, topicID string, file *ShortTermVectorFile) error {
	raw, err := json.Marshal(file)
	if err != nil {
		return kind.New(kind.Memory, "Set", err)
	}
	if err := c.client.Set(ctx, c.key(assistantID, topicID), raw, c.ttl).Err(); err != nil {
		return kind.New(kind.Memory, "Set", err)
	}
	return nil
}

// Invalidate drops the cached entry for topic, used after every Save so
// readers never observe a stale vector file within the TTL window.
func (c *ShortTermCache) Invalidate(ctx context.Context, assistantID, topicID string) error {
	if err := c.client.Del(ctx, c.key(assistantID, topicID)).Err(); err != nil {
		return kind.New(kind.Memory, "Invalidate", err)
	}
	return nil
}

// CachedShortTermFileRepository wraps a ShortTermFileRepository with an
// optional ShortTermCache. cache may be nil, in which case it behaves
// exactly like the underlying repository.
type CachedShortTermFileRepository struct {
	repo  *ShortTermFileRepository
	cache *ShortTermCache
}

// NewCachedShortTermFileRepository composes repo and cache (cache may be nil).
func NewCachedShortTermFileRepository(repo *ShortTermFileRepository, cache *ShortTermCache) *CachedShortTermFileRepository {
	return &CachedShortTermFileRepository{repo: repo, cache: cache}
}

// Load returns the cached file when present, falling back to the repository
// and populating the cache on a miss.
func (r *CachedShortTermFileRepository) Load(ctx context.Context, assistantID, topicID, defaultModel string) (*ShortTermVectorFile, error) {
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, assistantID, topicID); err == nil && cached != nil {
			return cached, nil
		}
	}
	file, err := r.repo.Load(assistantID, topicID, defaultModel)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, assistantID, topicID, file)
	}
	return file, nil
}

// Save writes through to the repository then invalidates the cache entry.
func (r *CachedShortTermFileRepository) Save(ctx context.Context, assistantID, topicID string, file *ShortTermVectorFile, embeddingModel string) error {
	if err := r.repo.Save(assistantID, topicID, file, embeddingModel); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Invalidate(ctx, assistantID, topicID)
	}
	return nil
}
