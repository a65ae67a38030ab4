package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a thread-safe store used when a database is not configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	projects map[string][]ProjectRecord
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{projects: make(map[string][]ProjectRecord)}
}

// AddProject prepends a project to the owner's list.
func (s *InMemoryStore) AddProject(_ context.Context, input ProjectRecord) (ProjectRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}

	list := append([]ProjectRecord{input}, s.projects[input.OwnerID]...)
	if len(list) > HistoryLimit {
		list = list[:HistoryLimit]
	}
	s.projects[input.OwnerID] = list

	return input, nil
}

// ListProjects returns a snapshot of the owner's projects, newest first.
func (s *InMemoryStore) ListProjects(_ context.Context, ownerID string) ([]ProjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.projects[ownerID]
	snapshot := make([]ProjectRecord, len(list))
	copy(snapshot, list)
	return snapshot, nil
}

// DeleteProject removes a project by ID.
func (s *InMemoryStore) DeleteProject(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.projects[ownerID]
	for idx, p := range list {
		if p.ID == id {
			s.projects[ownerID] = append(list[:idx:idx], list[idx+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
