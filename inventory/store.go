package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned for lookups of unknown environments or groups.
var ErrNotFound = errors.New("not found")

// Store is the read/write catalog of environments and groups.
type Store interface {
	Reader

	CreateEnvironment(ctx context.Context, env *Environment) error
	UpdateEnvironment(ctx context.Context, env *Environment) error
	DeleteEnvironment(ctx context.Context, id string) error
	ListEnvironments(ctx context.Context) ([]Environment, error)

	CreateGroup(ctx context.Context, g *Group) error
	UpdateGroup(ctx context.Context, g *Group) error
	DeleteGroup(ctx context.Context, id string) error
	ListGroups(ctx context.Context) ([]Group, error)
}

// Reader is the read-only view the resolver needs.
type Reader interface {
	GetEnvironment(ctx context.Context, id string) (*Environment, error)
	GetGroup(ctx context.Context, id string) (*Group, error)
}

// MemoryStore keeps the catalog in process memory. Used by tests and by
// runs without a configured database.
type MemoryStore struct {
	mu     sync.RWMutex
	envs   map[string]Environment
	groups map[string]Group
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		envs:   make(map[string]Environment),
		groups: make(map[string]Group),
	}
}

func (s *MemoryStore) CreateEnvironment(ctx context.Context, env *Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.envs[env.ID]; exists {
		return fmt.Errorf("environment %s already exists", env.ID)
	}
	env.CreatedAt = time.Now().UTC()
	env.UpdatedAt = env.CreatedAt
	s.envs[env.ID] = *env
	return nil
}

func (s *MemoryStore) UpdateEnvironment(ctx context.Context, env *Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.envs[env.ID]; !exists {
		return fmt.Errorf("environment %s: %w", env.ID, ErrNotFound)
	}
	env.UpdatedAt = time.Now().UTC()
	s.envs[env.ID] = *env
	return nil
}

func (s *MemoryStore) DeleteEnvironment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.envs[id]; !exists {
		return fmt.Errorf("environment %s: %w", id, ErrNotFound)
	}
	delete(s.envs, id)
	return nil
}

func (s *MemoryStore) GetEnvironment(ctx context.Context, id string) (*Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.envs[id]
	if !ok {
		return nil, fmt.Errorf("environment %s: %w", id, ErrNotFound)
	}
	return &env, nil
}

func (s *MemoryStore) ListEnvironments(ctx context.Context) ([]Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	envs := make([]Environment, 0, len(s.envs))
	for _, env := range s.envs {
		envs = append(envs, env)
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Name < envs[j].Name })
	return envs, nil
}

func (s *MemoryStore) CreateGroup(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[g.ID]; exists {
		return fmt.Errorf("group %s already exists", g.ID)
	}
	g.CreatedAt = time.Now().UTC()
	g.UpdatedAt = g.CreatedAt
	s.groups[g.ID] = *g
	return nil
}

func (s *MemoryStore) UpdateGroup(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[g.ID]; !exists {
		return fmt.Errorf("group %s: %w", g.ID, ErrNotFound)
	}
	g.UpdatedAt = time.Now().UTC()
	s.groups[g.ID] = *g
	return nil
}

func (s *MemoryStore) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[id]; !exists {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	delete(s.groups, id)
	return nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	return &g, nil
}

func (s *MemoryStore) ListGroups(ctx context.Context) ([]Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}
