package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vidfriends/friends/internal/models"
)

// InMemoryRelationshipStore implements RelationshipStore for tests and local development.
// Every operation holds the store lock, which gives the same per-operation
// atomicity the PostgreSQL store gets from its constraints and transactions.
type InMemoryRelationshipStore struct {
	mu      sync.RWMutex
	records map[string]models.Relationship
}

// NewInMemoryRelationshipStore returns a RelationshipStore backed by an in-memory map.
func NewInMemoryRelationshipStore() *InMemoryRelationshipStore {
	return &InMemoryRelationshipStore{records: make(map[string]models.Relationship)}
}

// CreatePending stores a pending record unless the pair is already linked.
func (s *InMemoryRelationshipStore) CreatePending(_ context.Context, rel models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rel.ID]; exists {
		return ErrConflict
	}
	if _, ok := s.findPairLocked(rel.From, rel.To); ok {
		return ErrConflict
	}
	if _, ok := s.findPairLocked(rel.To, rel.From); ok {
		return ErrConflict
	}

	rel.Status = models.StatusPending
	rel.RespondedAt = nil
	s.records[rel.ID] = rel
	return nil
}

// Find retrieves a record by id.
func (s *InMemoryRelationshipStore) Find(_ context.Context, id string) (models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.records[id]
	if !ok {
		return models.Relationship{}, ErrNotFound
	}
	return rel, nil
}

// Accept flips the record addressed to addressee and ensures the reciprocal
// exists. The flag reports whether the record was pending before the call.
func (s *InMemoryRelationshipStore) Accept(_ context.Context, id, addressee, reciprocalID string, at time.Time) (models.Relationship, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.records[id]
	if !ok || rel.To != addressee {
		return models.Relationship{}, false, ErrNotFound
	}

	transitioned := rel.Status == models.StatusPending
	rel.Status = models.StatusAccepted
	if rel.RespondedAt == nil {
		respondedAt := at
		rel.RespondedAt = &respondedAt
	}
	s.records[id] = rel

	if reciprocal, ok := s.findPairLocked(rel.To, rel.From); ok {
		reciprocal.Status = models.StatusAccepted
		if reciprocal.RespondedAt == nil {
			respondedAt := at
			reciprocal.RespondedAt = &respondedAt
		}
		s.records[reciprocal.ID] = reciprocal
		return rel, transitioned, nil
	}

	respondedAt := at
	s.records[reciprocalID] = models.Relationship{
		ID:          reciprocalID,
		From:        rel.To,
		To:          rel.From,
		Status:      models.StatusAccepted,
		CreatedAt:   at,
		RespondedAt: &respondedAt,
	}
	return rel, transitioned, nil
}

// DeletePending removes a pending record owned by party on the requested side.
func (s *InMemoryRelationshipStore) DeletePending(_ context.Context, id, party string, asSender bool) (models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.records[id]
	if !ok || rel.Status != models.StatusPending {
		return models.Relationship{}, ErrNotFound
	}
	owner := rel.To
	if asSender {
		owner = rel.From
	}
	if owner != party {
		return models.Relationship{}, ErrNotFound
	}

	delete(s.records, id)
	return rel, nil
}

// DeleteAccepted removes every accepted record between a and b.
func (s *InMemoryRelationshipStore) DeleteAccepted(_ context.Context, a, b string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, rel := range s.records {
		if rel.Status != models.StatusAccepted {
			continue
		}
		if (rel.From == a && rel.To == b) || (rel.From == b && rel.To == a) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// ListForAccount returns records involving the account, newest first.
func (s *InMemoryRelationshipStore) ListForAccount(_ context.Context, accountID string) ([]models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Relationship
	for _, rel := range s.records {
		if rel.From == accountID || rel.To == accountID {
			out = append(out, rel)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// count reports how many records are stored.
func (s *InMemoryRelationshipStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *InMemoryRelationshipStore) findPairLocked(from, to string) (models.Relationship, bool) {
	for _, rel := range s.records {
		if rel.From == from && rel.To == to {
			return rel, true
		}
	}
	return models.Relationship{}, false
}

var _ RelationshipStore = (*InMemoryRelationshipStore)(nil)
