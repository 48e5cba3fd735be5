package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

// ErrNotFound is returned by lookups when no record has the given id.
var ErrNotFound = errors.New("record not found")

// Store is the single persistence surface for threats and actions. It has two
// interchangeable backings (Postgres and in-memory); callers never see which
// one served a call. Writes are append-or-upsert on identity, reads return
// snapshots in insertion order.
type Store interface {
	AddThreat(ctx context.Context, t *models.Threat) error
	AddAction(ctx context.Context, a *models.RemediationAction) error
	ListThreats(ctx context.Context) ([]*models.Threat, error)
	ListActions(ctx context.Context) ([]*models.RemediationAction, error)
	GetThreat(ctx context.Context, id uuid.UUID) (*models.Threat, error)
	GetAction(ctx context.Context, id uuid.UUID) (*models.RemediationAction, error)
	MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) error
	Ping(ctx context.Context) error
	Close() error
}
