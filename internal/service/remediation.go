package service

import (
	"context"
	"log/slog"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
	"github.com/sentinelforge/sentinelforge-backend/internal/pkg/metrics"
	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
)

// Orchestrator is the container control plane surface the actuator needs.
type Orchestrator interface {
	Available(ctx context.Context) bool
	DeletePod(ctx context.Context, namespace, name string) error
	IsolatePod(ctx context.Context, namespace, name string) error
}

// RemediationService executes remediation actions against the orchestrator.
// When the orchestrator is unreachable at startup every dispatch runs in
// simulated mode: logged and reported successful, no side effects.
type RemediationService struct {
	orchestrator Orchestrator
	store        repository.Store
	available    bool
	log          *slog.Logger
}

// NewRemediationService probes the orchestrator once; orchestrator may be
// nil when no cluster credentials exist at all.
func NewRemediationService(ctx context.Context, orchestrator Orchestrator, store repository.Store, log *slog.Logger) *RemediationService {
	available := orchestrator != nil && orchestrator.Available(ctx)
	if available {
		log.Info("remediation service initialized, orchestrator reachable")
	} else {
		log.Warn("orchestrator unreachable, remediation running in simulated mode")
	}
	return &RemediationService{
		orchestrator: orchestrator,
		store:        store,
		available:    available,
		log:          log,
	}
}

// Execute runs one action for a threat and persists the outcome. Actions
// gated on confirmation are recorded as pending: executed stays false and
// success stays unknown. Orchestrator failures are captured on the action,
// never returned; the pipeline does not retry.
func (s *RemediationService) Execute(ctx context.Context, action *models.RemediationAction, threat *models.Threat) {
	now := models.Now()
	action.ExecutedAt = &now

	if action.RequiresConfirmation {
		s.log.Warn("action requires confirmation",
			"action_type", action.ActionType,
			"risk_level", action.RiskLevel,
			"threat_id", threat.ID,
		)
		action.Executed = false
		action.Success = nil
		s.persist(ctx, action)
		metrics.ActionsExecutedTotal.WithLabelValues(string(action.ActionType), "pending").Inc()
		return
	}

	err := s.dispatch(ctx, action, threat)

	action.Executed = true
	success := err == nil
	action.Success = &success
	if err != nil {
		action.ErrorMessage = err.Error()
	}
	s.persist(ctx, action)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		s.log.Error("action failed", "action_type", action.ActionType, "threat_id", threat.ID, "error", err)
	} else {
		s.log.Info("action executed", "action_type", action.ActionType, "threat_id", threat.ID)
	}
	metrics.ActionsExecutedTotal.WithLabelValues(string(action.ActionType), outcome).Inc()
}

func (s *RemediationService) dispatch(ctx context.Context, action *models.RemediationAction, threat *models.Threat) error {
	namespace := threat.SourceNamespace
	if namespace == "" {
		namespace = "default"
	}

	if !s.available {
		s.log.Info("simulated action",
			"action_type", action.ActionType,
			"pod", threat.SourcePod,
			"namespace", namespace,
		)
		return nil
	}

	switch action.ActionType {
	case models.ActionTerminatePod:
		return s.orchestrator.DeletePod(ctx, namespace, threat.SourcePod)
	case models.ActionIsolatePod:
		return s.orchestrator.IsolatePod(ctx, namespace, threat.SourcePod)
	case models.ActionAlert:
		s.log.Warn("ALERT: threat detected",
			"severity", threat.Severity,
			"threat_type", threat.ThreatType,
			"pod", threat.SourcePod,
			"description", truncate(threat.Description, 100),
		)
		return nil
	case models.ActionLog:
		s.log.Info("threat logged", "threat_type", threat.ThreatType, "pod", threat.SourcePod)
		return nil
	default:
		// monitor plus the reserved types (block_network,
		// terminate_process, escalate) succeed trivially.
		return nil
	}
}

func (s *RemediationService) persist(ctx context.Context, action *models.RemediationAction) {
	if err := s.store.AddAction(ctx, action); err != nil {
		s.log.Error("failed to persist action", "action_id", action.ID, "error", err)
	}
}

// Health returns the health payload for the /health endpoint.
func (s *RemediationService) Health() map[string]interface{} {
	status := "healthy"
	if !s.available {
		status = "degraded"
	}
	return map[string]interface{}{
		"status":        status,
		"k8s_available": s.available,
	}
}
