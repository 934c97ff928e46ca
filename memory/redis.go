package memory

import (
	"context"
	"fmt"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/forge/config"
)

var _ Store = new(RedisStore)

const maxEntriesPerAgent = 200

// RedisStore keeps agent memory in a redis list per agent so memory survives
// engine restarts and can be shared between instances.
type RedisStore struct {
	namespace string
	client    rd.UniversalClient
}

func NewRedisStore(conf config.RedisConfig) *RedisStore {
	client := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs: conf.Addrs,
	})
	return &RedisStore{
		namespace: conf.Namespace,
		client:    client,
	}
}

func (s *RedisStore) key(agentName string) string {
	return s.namespace + ":memory:" + agentName
}

func (s *RedisStore) Recall(ctx context.Context, agentName string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = maxEntriesPerAgent
	}
	entries, err := s.client.LRange(ctx, s.key(agentName), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("error recalling memory for agent %s: %w", agentName, err)
	}
	// list is newest first; callers expect chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *RedisStore) Store(ctx context.Context, agentName string, entry string) error {
	key := s.key(agentName)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, maxEntriesPerAgent-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error storing memory for agent %s: %w", agentName, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
