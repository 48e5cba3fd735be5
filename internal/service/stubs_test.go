package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
)

var errStoreDown = errors.New("store down")

// failingStore errors on every call, for exercising degraded paths.
type failingStore struct{}

var _ repository.Store = (*failingStore)(nil)

func (*failingStore) AddThreat(context.Context, *models.Threat) error { return errStoreDown }
func (*failingStore) AddAction(context.Context, *models.RemediationAction) error {
	return errStoreDown
}
func (*failingStore) ListThreats(context.Context) ([]*models.Threat, error) {
	return nil, errStoreDown
}
func (*failingStore) ListActions(context.Context) ([]*models.RemediationAction, error) {
	return nil, errStoreDown
}
func (*failingStore) GetThreat(context.Context, uuid.UUID) (*models.Threat, error) {
	return nil, errStoreDown
}
func (*failingStore) GetAction(context.Context, uuid.UUID) (*models.RemediationAction, error) {
	return nil, errStoreDown
}
func (*failingStore) MarkResolved(context.Context, uuid.UUID, time.Time) error { return errStoreDown }
func (*failingStore) Ping(context.Context) error                               { return errStoreDown }
func (*failingStore) Close() error                                             { return nil }

// fakeOrchestrator records calls and fails on demand.
type fakeOrchestrator struct {
	available bool
	failWith  error

	deleted  []string // "namespace/name"
	isolated []string
}

var _ Orchestrator = (*fakeOrchestrator)(nil)

func (o *fakeOrchestrator) Available(context.Context) bool { return o.available }

func (o *fakeOrchestrator) DeletePod(_ context.Context, namespace, name string) error {
	if o.failWith != nil {
		return o.failWith
	}
	o.deleted = append(o.deleted, namespace+"/"+name)
	return nil
}

func (o *fakeOrchestrator) IsolatePod(_ context.Context, namespace, name string) error {
	if o.failWith != nil {
		return o.failWith
	}
	o.isolated = append(o.isolated, namespace+"/"+name)
	return nil
}
