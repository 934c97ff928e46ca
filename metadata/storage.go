package metadata

import (
	"context"
	"fmt"
	"sync"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/forge/config"
	"github.com/mohitkumar/forge/util"
)

type Storage interface {
	SaveTeamDefinition(def TeamDefinition) error
	GetTeamDefinition(name string) (*TeamDefinition, error)
	DeleteTeamDefinition(name string) error
	ListTeamDefinitions() ([]string, error)
}

var _ Storage = new(InMemoryStorage)

type InMemoryStorage struct {
	mu   sync.RWMutex
	defs map[string]TeamDefinition
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{defs: make(map[string]TeamDefinition)}
}

func (s *InMemoryStorage) SaveTeamDefinition(def TeamDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.Name] = def
	return nil
}

func (s *InMemoryStorage) GetTeamDefinition(name string) (*TeamDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[name]
	if !ok {
		return nil, fmt.Errorf("team '%s' not found", name)
	}
	return &def, nil
}

func (s *InMemoryStorage) DeleteTeamDefinition(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.defs, name)
	return nil
}

func (s *InMemoryStorage) ListTeamDefinitions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	return names, nil
}

var _ Storage = new(RedisStorage)

// RedisStorage keeps definitions in a redis hash so multiple engine instances
// share one catalog.
type RedisStorage struct {
	key    string
	client rd.UniversalClient
	encDec util.EncoderDecoder[TeamDefinition]
}

func NewRedisStorage(conf config.RedisConfig) *RedisStorage {
	return &RedisStorage{
		key: conf.Namespace + ":teams",
		client: rd.NewUniversalClient(&rd.UniversalOptions{
			Addrs: conf.Addrs,
		}),
		encDec: util.NewJsonEncoderDecoder[TeamDefinition](),
	}
}

func (s *RedisStorage) SaveTeamDefinition(def TeamDefinition) error {
	data, err := s.encDec.Encode(def)
	if err != nil {
		return err
	}
	if err := s.client.HSet(context.Background(), s.key, []string{def.Name, string(data)}).Err(); err != nil {
		return fmt.Errorf("error saving team '%s': %w", def.Name, err)
	}
	return nil
}

func (s *RedisStorage) GetTeamDefinition(name string) (*TeamDefinition, error) {
	data, err := s.client.HGet(context.Background(), s.key, name).Result()
	if err != nil {
		return nil, fmt.Errorf("team '%s' not found: %w", name, err)
	}
	return s.encDec.Decode([]byte(data))
}

func (s *RedisStorage) DeleteTeamDefinition(name string) error {
	if err := s.client.HDel(context.Background(), s.key, name).Err(); err != nil {
		return fmt.Errorf("error deleting team '%s': %w", name, err)
	}
	return nil
}

func (s *RedisStorage) ListTeamDefinitions() ([]string, error) {
	names, err := s.client.HKeys(context.Background(), s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("error listing teams: %w", err)
	}
	return names, nil
}
