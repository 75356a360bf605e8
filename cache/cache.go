// Package cache memoizes sub-question answers in Redis so repeated or
// overlapping queries do not pay for the same retrieval twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smhanov/multistep"
)

const (
	// DefaultTTL is used when Options.TTL is zero.
	DefaultTTL = 24 * time.Hour
	// DefaultPrefix namespaces cache keys when Options.Prefix is empty.
	DefaultPrefix = "multistep:answer:"
)

type (
	// Store is the subset of the go-redis client the cache uses. It is
	// satisfied by *redis.Client and redis.UniversalClient.
	Store interface {
		Get(ctx context.Context, key string) *redis.StringCmd
		Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	}

	// Options configures AnswerCache.
	Options struct {
		// Redis stores the cached answers.
		Redis Store
		// Prefix namespaces keys, for example per knowledge source.
		Prefix string
		// TTL bounds how long an answer is reused.
		TTL time.Duration
		// Logger receives cache failures, which never fail a step.
		Logger multistep.Logger
	}

	// AnswerCache decorates an AnswerEngine with a read-through Redis cache.
	// Only successful answers are stored.
	AnswerCache struct {
		next   multistep.AnswerEngine
		rdb    Store
		prefix string
		ttl    time.Duration
		logger multistep.Logger
	}
)

var _ multistep.AnswerEngine = (*AnswerCache)(nil)

// New wraps next with a Redis-backed cache.
func New(next multistep.AnswerEngine, opts Options) (*AnswerCache, error) {
	if next == nil {
		return nil, errors.New("answer engine is required")
	}
	if opts.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	c := &AnswerCache{
		next:   next,
		rdb:    opts.Redis,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		logger: opts.Logger,
	}
	if c.prefix == "" {
		c.prefix = DefaultPrefix
	}
	if c.ttl == 0 {
		c.ttl = DefaultTTL
	}
	if c.logger == nil {
		c.logger = multistep.NewClueLogger()
	}
	return c, nil
}

// Answer returns the cached answer for subQuestion when present, otherwise
// asks the wrapped engine and stores its answer.
func (c *AnswerCache) Answer(ctx context.Context, subQuestion string) (multistep.Answer, error) {
	key := c.Key(subQuestion)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ans multistep.Answer
		uerr := json.Unmarshal(raw, &ans)
		if uerr == nil {
			c.logger.Debug(ctx, "answer cache hit", "key", key)
			return ans, nil
		}
		c.logger.Warn(ctx, "answer cache entry unreadable", "key", key, "err", uerr.Error())
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn(ctx, "answer cache read failed", "key", key, "err", err.Error())
	}

	ans, err := c.next.Answer(ctx, subQuestion)
	if err != nil {
		return multistep.Answer{}, err
	}
	payload, err := json.Marshal(ans)
	if err != nil {
		c.logger.Warn(ctx, "answer cache encode failed", "key", key, "err", err.Error())
		return ans, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "answer cache write failed", "key", key, "err", err.Error())
	}
	return ans, nil
}

// Key returns the Redis key for subQuestion. Case and runs of whitespace do
// not change the key.
func (c *AnswerCache) Key(subQuestion string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(subQuestion)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return c.prefix + hex.EncodeToString(sum[:])
}
