package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

// FallbackStore wraps a durable Store and transparently degrades to an
// in-memory store on any durable failure, per call. Callers see one Store;
// an unavailable database costs a log line, never an error, except that
// lookups still surface ErrNotFound.
type FallbackStore struct {
	durable Store
	memory  *MemoryStore
	log     *slog.Logger
}

// NewFallbackStore wraps durable with an in-memory fallback tier.
func NewFallbackStore(durable Store, log *slog.Logger) *FallbackStore {
	return &FallbackStore{
		durable: durable,
		memory:  NewMemoryStore(),
		log:     log,
	}
}

func (s *FallbackStore) degraded(op string, err error) {
	s.log.Warn("durable store unavailable, using in-memory fallback", "op", op, "error", err)
}

func (s *FallbackStore) AddThreat(ctx context.Context, t *models.Threat) error {
	if err := s.durable.AddThreat(ctx, t); err != nil {
		s.degraded("add_threat", err)
		return s.memory.AddThreat(ctx, t)
	}
	return nil
}

func (s *FallbackStore) AddAction(ctx context.Context, a *models.RemediationAction) error {
	if err := s.durable.AddAction(ctx, a); err != nil {
		s.degraded("add_action", err)
		return s.memory.AddAction(ctx, a)
	}
	return nil
}

func (s *FallbackStore) ListThreats(ctx context.Context) ([]*models.Threat, error) {
	threats, err := s.durable.ListThreats(ctx)
	if err != nil {
		s.degraded("list_threats", err)
		return s.memory.ListThreats(ctx)
	}
	return threats, nil
}

func (s *FallbackStore) ListActions(ctx context.Context) ([]*models.RemediationAction, error) {
	actions, err := s.durable.ListActions(ctx)
	if err != nil {
		s.degraded("list_actions", err)
		return s.memory.ListActions(ctx)
	}
	return actions, nil
}

func (s *FallbackStore) GetThreat(ctx context.Context, id uuid.UUID) (*models.Threat, error) {
	t, err := s.durable.GetThreat(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.degraded("get_threat", err)
		return s.memory.GetThreat(ctx, id)
	}
	return t, err
}

func (s *FallbackStore) GetAction(ctx context.Context, id uuid.UUID) (*models.RemediationAction, error) {
	a, err := s.durable.GetAction(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.degraded("get_action", err)
		return s.memory.GetAction(ctx, id)
	}
	return a, err
}

func (s *FallbackStore) MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.durable.MarkResolved(ctx, id, at)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.degraded("mark_resolved", err)
		return s.memory.MarkResolved(ctx, id, at)
	}
	return err
}

func (s *FallbackStore) Ping(ctx context.Context) error {
	return s.durable.Ping(ctx)
}

func (s *FallbackStore) Close() error {
	return s.durable.Close()
}
