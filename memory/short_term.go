package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

var _ Store = new(ShortTermStore)

const defaultExpiry = 30 * time.Minute

// ShortTermStore is an in-process store scoped to the engine's lifetime.
// Entries expire so an abandoned run does not pin its history forever.
type ShortTermStore struct {
	cache *cache.Cache
}

func NewShortTermStore() *ShortTermStore {
	return &ShortTermStore{
		cache: cache.New(defaultExpiry, 2*defaultExpiry),
	}
}

func (s *ShortTermStore) Recall(ctx context.Context, agentName string, limit int) ([]string, error) {
	val, found := s.cache.Get(agentName)
	if !found {
		return nil, nil
	}
	entries := val.([]string)
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]string, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *ShortTermStore) Store(ctx context.Context, agentName string, entry string) error {
	var entries []string
	if val, found := s.cache.Get(agentName); found {
		entries = val.([]string)
	}
	entries = append(entries, entry)
	s.cache.Set(agentName, entries, cache.DefaultExpiration)
	return nil
}
