package apikeys

import (
	"context"
	"sort"
	"sync"
	"time"

	"flagforge/internal/apperrors"
	"flagforge/internal/models"

	"github.com/google/uuid"
)

// memoryRepository is an in-memory Repository used by tests and by the
// helper CLI when no database is reachable.
type memoryRepository struct {
	mu   sync.RWMutex
	keys map[string]models.APIKey
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{keys: make(map[string]models.APIKey)}
}

func (r *memoryRepository) Create(ctx context.Context, key *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	now := time.Now()
	key.CreatedAt = now
	key.UpdatedAt = now
	r.keys[key.ID] = *key
	return nil
}

func (r *memoryRepository) GetByPrefix(ctx context.Context, prefix string) ([]models.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []models.APIKey
	for _, key := range r.keys {
		if key.Prefix == prefix {
			matches = append(matches, key)
		}
	}
	return matches, nil
}

func (r *memoryRepository) List(ctx context.Context) ([]models.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]models.APIKey, 0, len(r.keys))
	for _, key := range r.keys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[id]; !ok {
		return apperrors.NotFound("api key", id)
	}
	delete(r.keys, id)
	return nil
}

func (r *memoryRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok {
		return nil
	}
	key.LastUsedAt = &at
	r.keys[id] = key
	return nil
}

func (r *memoryRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, key := range r.keys {
		if key.ExpiresAt != nil && key.ExpiresAt.Before(cutoff) {
			delete(r.keys, id)
			removed++
		}
	}
	return removed, nil
}
