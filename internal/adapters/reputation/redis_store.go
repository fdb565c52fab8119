package reputation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// nudgeLuaScript performs the toward-target score update, the clamp and
// the observation increment in one atomic server-side step
const nudgeLuaScript = `
local score = tonumber(redis.call("HGET", KEYS[1], "score") or ARGV[3])
local target = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])

score = score + (target - score) * rate
if score > 1.0 then
    score = 1.0
elseif score < 0.0 then
    score = 0.0
end

local observations = redis.call("HINCRBY", KEYS[1], "observations", 1)
redis.call("HSET", KEYS[1], "score", tostring(score), "updated_at", ARGV[4])

return {tostring(score), observations}
`

// RedisStore is a Redis implementation of the ReputationStore interface.
// Each key is a hash with score, observations and updated_at fields.
type RedisStore struct {
	client      *redis.Client
	nudgeScript *redis.Script
	keyPrefix   string
	logger      *zap.Logger
}

// NewRedisStore creates a new Redis reputation store
func NewRedisStore(addr, password string, db int, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:      client,
		nudgeScript: redis.NewScript(nudgeLuaScript),
		keyPrefix:   "reputation:",
		logger:      logger,
	}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client:      client,
		nudgeScript: redis.NewScript(nudgeLuaScript),
		keyPrefix:   "reputation:",
		logger:      logger,
	}
}

// Get retrieves the reputation for a key
func (s *RedisStore) Get(ctx context.Context, key string) (*core.SenderReputation, error) {
	fields, err := s.client.HGetAll(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query reputation: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}

	rep := &core.SenderReputation{Key: key}
	if v, err := strconv.ParseFloat(fields["score"], 64); err == nil {
		rep.Score = v
	}
	if v, err := strconv.Atoi(fields["observations"]); err == nil {
		rep.Observations = v
	}
	if v, err := time.Parse(time.RFC3339, fields["updated_at"]); err == nil {
		rep.UpdatedAt = v
	}
	return rep, nil
}

// Set stores a reputation entry
func (s *RedisStore) Set(ctx context.Context, rep *core.SenderReputation) error {
	err := s.client.HSet(ctx, s.keyPrefix+rep.Key,
		"score", strconv.FormatFloat(rep.Score, 'f', -1, 64),
		"observations", rep.Observations,
		"updated_at", rep.UpdatedAt.Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store reputation: %w", err)
	}
	return nil
}

// Nudge atomically moves the key's score toward target by rate via the
// Lua script, so concurrent callers cannot lose updates
func (s *RedisStore) Nudge(ctx context.Context, key string, target, rate float64) (*core.SenderReputation, error) {
	now := time.Now()
	result, err := s.nudgeScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		strconv.FormatFloat(target, 'f', -1, 64),
		strconv.FormatFloat(rate, 'f', -1, 64),
		strconv.FormatFloat(core.NeutralReputation, 'f', -1, 64),
		now.Format(time.RFC3339),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to nudge reputation: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected nudge script result: %v", result)
	}

	score, err := strconv.ParseFloat(fmt.Sprintf("%v", result[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse nudged score: %w", err)
	}
	observations, err := strconv.ParseInt(fmt.Sprintf("%v", result[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse observation count: %w", err)
	}

	return &core.SenderReputation{
		Key:          key,
		Score:        score,
		Observations: int(observations),
		UpdatedAt:    now,
	}, nil
}

// Stop closes the Redis client
func (s *RedisStore) Stop() {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close Redis reputation store", zap.Error(err))
	}
}
