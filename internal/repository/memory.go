package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

// MemoryStore keeps threats and actions in ordered slices guarded by one
// coarse lock, so appends and snapshot iteration never tear. It is the
// fallback backing and the only backing when no DATABASE_URL is configured.
type MemoryStore struct {
	mu            sync.Mutex
	threats       []*models.Threat
	actions       []*models.RemediationAction
	threatsByID   map[uuid.UUID]int
	actionsByID   map[uuid.UUID]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threatsByID: make(map[uuid.UUID]int),
		actionsByID: make(map[uuid.UUID]int),
	}
}

// AddThreat appends t, or replaces the stored record when the id is already
// known (idempotent upsert).
func (s *MemoryStore) AddThreat(ctx context.Context, t *models.Threat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	if i, ok := s.threatsByID[t.ID]; ok {
		s.threats[i] = &cp
		return nil
	}
	s.threatsByID[t.ID] = len(s.threats)
	s.threats = append(s.threats, &cp)
	return nil
}

// AddAction appends a, or replaces the stored record when the id is already
// known.
func (s *MemoryStore) AddAction(ctx context.Context, a *models.RemediationAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	if i, ok := s.actionsByID[a.ID]; ok {
		s.actions[i] = &cp
		return nil
	}
	s.actionsByID[a.ID] = len(s.actions)
	s.actions = append(s.actions, &cp)
	return nil
}

// ListThreats returns a snapshot of all threats in insertion order.
func (s *MemoryStore) ListThreats(ctx context.Context) ([]*models.Threat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Threat, len(s.threats))
	for i, t := range s.threats {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

// ListActions returns a snapshot of all actions in insertion order.
func (s *MemoryStore) ListActions(ctx context.Context) ([]*models.RemediationAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.RemediationAction, len(s.actions))
	for i, a := range s.actions {
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

// GetThreat returns the threat with the given id, or ErrNotFound.
func (s *MemoryStore) GetThreat(ctx context.Context, id uuid.UUID) (*models.Threat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.threatsByID[id]; ok {
		cp := *s.threats[i]
		return &cp, nil
	}
	return nil, ErrNotFound
}

// GetAction returns the action with the given id, or ErrNotFound.
func (s *MemoryStore) GetAction(ctx context.Context, id uuid.UUID) (*models.RemediationAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.actionsByID[id]; ok {
		cp := *s.actions[i]
		return &cp, nil
	}
	return nil, ErrNotFound
}

// MarkResolved sets resolved/resolved_at on the threat with the given id.
// Absent ids are a no-op returning ErrNotFound so callers can 404.
func (s *MemoryStore) MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.threatsByID[id]
	if !ok {
		return ErrNotFound
	}
	ts := models.NewTimestamp(at)
	s.threats[i].Resolved = true
	s.threats[i].ResolvedAt = &ts
	return nil
}

// Ping always succeeds; memory is never unavailable.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
