package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

// Policy decides the remediation for a threat. Implementations must be
// side-effect free: the same threat always yields the same decision.
type Policy interface {
	Decide(t *models.Threat) *models.RemediationAction
	Health() map[string]interface{}
}

// RulePolicy is the deterministic severity x threat-type table.
type RulePolicy struct{}

// NewRulePolicy creates the rule-based decision policy.
func NewRulePolicy() *RulePolicy {
	return &RulePolicy{}
}

// Decide maps the threat through the policy table, boosts confidence with
// the ML score, and sets the confirmation gate from the risk level.
func (p *RulePolicy) Decide(t *models.Threat) *models.RemediationAction {
	actionType := models.ActionMonitor
	riskLevel := models.RiskLow
	confidence := 0.5

	switch t.Severity {
	case models.SeverityCritical:
		if t.ThreatType == models.ThreatReverseShell {
			actionType, riskLevel, confidence = models.ActionTerminatePod, models.RiskHigh, 0.9
		} else {
			actionType, riskLevel, confidence = models.ActionIsolatePod, models.RiskMedium, 0.8
		}
	case models.SeverityHigh:
		if t.ThreatType == models.ThreatReverseShell || t.ThreatType == models.ThreatContainerEscape {
			actionType, riskLevel, confidence = models.ActionIsolatePod, models.RiskMedium, 0.75
		} else {
			actionType, riskLevel, confidence = models.ActionAlert, models.RiskLow, 0.7
		}
	case models.SeverityMedium:
		actionType, riskLevel, confidence = models.ActionAlert, models.RiskLow, 0.6
	default: // low
		actionType, riskLevel, confidence = models.ActionLog, models.RiskLow, 0.5
	}

	return finalize(t, actionType, riskLevel, confidence)
}

// Health returns the health payload for the /health endpoint.
func (p *RulePolicy) Health() map[string]interface{} {
	return map[string]interface{}{
		"status":       "healthy",
		"agent_loaded": false,
	}
}

// finalize applies the policy-independent post-processing: ML confidence
// boost (clamped to 1), risk-derived confirmation gate, and action
// parameters for the actuator.
func finalize(t *models.Threat, actionType models.ActionType, riskLevel models.RiskLevel, confidence float64) *models.RemediationAction {
	if t.MLScore != nil {
		confidence = confidence + 0.2*(*t.MLScore)
		if confidence > 1 {
			confidence = 1
		}
	}

	action := models.NewAction(t.ID)
	action.ActionType = actionType
	action.RiskLevel = riskLevel
	action.Confidence = confidence
	action.MLScore = t.MLScore
	action.RequiresConfirmation = riskLevel == models.RiskMedium || riskLevel == models.RiskHigh
	action.Parameters = models.JSONMap{
		"pod":       t.SourcePod,
		"namespace": t.SourceNamespace,
	}
	return action
}

// actionRisk classifies each discrete action for the learned policy; the
// post-processing in finalize is shared with the rule table.
var actionRisk = map[models.ActionType]models.RiskLevel{
	models.ActionMonitor:          models.RiskLow,
	models.ActionLog:              models.RiskLow,
	models.ActionAlert:            models.RiskLow,
	models.ActionIsolatePod:       models.RiskMedium,
	models.ActionTerminatePod:     models.RiskHigh,
	models.ActionBlockNetwork:     models.RiskMedium,
	models.ActionTerminateProcess: models.RiskMedium,
	models.ActionEscalate:         models.RiskMedium,
}

// rlModel is the serialized learned policy: one weight row plus bias per
// discrete action over the 6-dimensional state vector.
type rlModel struct {
	Weights [][]float64 `json:"weights"` // 8 x 6
	Biases  []float64   `json:"biases"`  // 8
}

// LearnedPolicy replaces the rule table with a trained linear policy over
// the normalized state (severity, threat-type weight, ml_score, has_pod,
// has_user, confidence).
type LearnedPolicy struct {
	model rlModel
	log   *slog.Logger
}

// NewLearnedPolicy loads the model from path. An unloadable model is an
// error; the caller falls back to the rule policy.
func NewLearnedPolicy(path string, log *slog.Logger) (*LearnedPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read RL model: %w", err)
	}
	var model rlModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse RL model: %w", err)
	}
	if len(model.Weights) != len(models.ActionTypes) || len(model.Biases) != len(models.ActionTypes) {
		return nil, fmt.Errorf("RL model has %d action rows, want %d", len(model.Weights), len(models.ActionTypes))
	}
	for i, row := range model.Weights {
		if len(row) != 6 {
			return nil, fmt.Errorf("RL model row %d has %d weights, want 6", i, len(row))
		}
	}
	return &LearnedPolicy{model: model, log: log}, nil
}

// Decide scores each discrete action against the state vector and picks the
// argmax; post-processing matches the rule policy.
func (p *LearnedPolicy) Decide(t *models.Threat) *models.RemediationAction {
	state := threatState(t)

	best, bestScore := 0, scoreAction(p.model, 0, state)
	for i := 1; i < len(models.ActionTypes); i++ {
		if s := scoreAction(p.model, i, state); s > bestScore {
			best, bestScore = i, s
		}
	}

	actionType := models.ActionTypes[best]
	riskLevel := actionRisk[actionType]
	// Confidence comes from the state's own confidence channel; the ML
	// boost in finalize refines it further.
	return finalize(t, actionType, riskLevel, state[5])
}

// Health returns the health payload for the /health endpoint.
func (p *LearnedPolicy) Health() map[string]interface{} {
	return map[string]interface{}{
		"status":       "healthy",
		"agent_loaded": true,
	}
}

func scoreAction(m rlModel, action int, state []float64) float64 {
	score := m.Biases[action]
	for j, w := range m.Weights[action] {
		score += w * state[j]
	}
	return score
}

// threatState builds the 6-tuple observation, all components in [0,1].
func threatState(t *models.Threat) []float64 {
	severityVal := map[models.ThreatSeverity]float64{
		models.SeverityLow:      0.25,
		models.SeverityMedium:   0.50,
		models.SeverityHigh:     0.75,
		models.SeverityCritical: 1.0,
	}[t.Severity]

	typeVal := map[models.ThreatType]float64{
		models.ThreatReverseShell:        1.0,
		models.ThreatContainerEscape:     0.9,
		models.ThreatPrivilegeEscalation: 0.8,
		models.ThreatMaliciousProcess:    0.7,
		models.ThreatNetworkAnomaly:      0.5,
		models.ThreatFileAnomaly:         0.4,
		models.ThreatUnauthorizedAccess:  0.3,
		models.ThreatUnknown:             0.2,
	}[t.ThreatType]

	mlScore := 0.5
	if t.MLScore != nil {
		mlScore = *t.MLScore
	}
	confidence := t.Confidence
	if confidence == 0 {
		confidence = 0.5
	}

	return []float64{
		severityVal,
		typeVal,
		mlScore,
		boolFeature(t.SourcePod != ""),
		boolFeature(t.SourceUser != ""),
		confidence,
	}
}
