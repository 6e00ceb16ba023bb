package dedup

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leakscope/backend/pkg/logger"
)

// RedisSeenSet stores identities as one Redis set per parser. Two sources
// touch disjoint keys, so concurrent source units never contend on a shared
// lock.
type RedisSeenSet struct {
	client *redis.Client
}

func NewRedisSeenSet(host string, port int, password string, db int) (*RedisSeenSet, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis seen-set initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &RedisSeenSet{client: client}, nil
}

func (r *RedisSeenSet) Close() error {
	return r.client.Close()
}

func (r *RedisSeenSet) IsSeen(ctx context.Context, parserID string, identity uint64) (bool, error) {
	seen, err := r.client.SIsMember(ctx, seenKey(parserID), memberFor(identity)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check seen set: %w", err)
	}
	return seen, nil
}

func (r *RedisSeenSet) MarkSeen(ctx context.Context, parserID string, identities []uint64) error {
	if len(identities) == 0 {
		return nil
	}

	members := make([]interface{}, 0, len(identities))
	for _, identity := range identities {
		members = append(members, memberFor(identity))
	}

	if err := r.client.SAdd(ctx, seenKey(parserID), members...).Err(); err != nil {
		return fmt.Errorf("failed to update seen set: %w", err)
	}

	logger.Debug("Seen set updated",
		zap.String("parser", parserID),
		zap.Int("identities", len(identities)),
	)
	return nil
}

func seenKey(parserID string) string {
	return fmt.Sprintf("seen:%s", parserID)
}

func memberFor(identity uint64) string {
	return strconv.FormatUint(identity, 10)
}
