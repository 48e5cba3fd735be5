package models

import (
	"github.com/google/uuid"
)

// ActionType identifies the remediation taken for a threat.
type ActionType string

const (
	ActionMonitor          ActionType = "monitor"
	ActionLog              ActionType = "log"
	ActionAlert            ActionType = "alert"
	ActionIsolatePod       ActionType = "isolate_pod"
	ActionTerminatePod     ActionType = "terminate_pod"
	ActionBlockNetwork     ActionType = "block_network"
	ActionTerminateProcess ActionType = "terminate_process"
	ActionEscalate         ActionType = "escalate"
)

// ActionTypes lists the 8 discrete actions in policy order. The index of an
// action in this slice is its discrete id for the learned policy.
var ActionTypes = []ActionType{
	ActionMonitor,
	ActionLog,
	ActionAlert,
	ActionIsolatePod,
	ActionTerminatePod,
	ActionBlockNetwork,
	ActionTerminateProcess,
	ActionEscalate,
}

// ParseActionType returns the action type for s, reporting whether s is a
// member of the closed set.
func ParseActionType(s string) (ActionType, bool) {
	for _, a := range ActionTypes {
		if ActionType(s) == a {
			return a, true
		}
	}
	return "", false
}

// RiskLevel classifies how dangerous it is to auto-execute an action.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"    // safe to auto-execute
	RiskMedium RiskLevel = "medium" // requires confirmation
	RiskHigh   RiskLevel = "high"   // requires confirmation
)

// RemediationAction is a decision produced for a Threat. Logically
// append-only; it is mutated exactly once, by the actuator on execution.
type RemediationAction struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ThreatID   uuid.UUID  `json:"threat_id" db:"threat_id"`
	CreatedAt  Timestamp  `json:"created_at" db:"created_at"`
	ActionType ActionType `json:"action_type" db:"action_type"`
	RiskLevel  RiskLevel  `json:"risk_level" db:"risk_level"`

	// Decision metrics, both in [0,1]
	Confidence float64  `json:"confidence" db:"confidence"`
	MLScore    *float64 `json:"ml_score,omitempty" db:"ml_score"`

	// Execution details. Success is tri-valued: nil until execution settles.
	Executed     bool       `json:"executed" db:"executed"`
	ExecutedAt   *Timestamp `json:"executed_at,omitempty" db:"executed_at"`
	Success      *bool      `json:"success,omitempty" db:"success"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`

	// Action-specific fields (pod, namespace, ...)
	Parameters JSONMap `json:"parameters" db:"parameters"`

	// Human confirmation gate
	RequiresConfirmation bool       `json:"requires_confirmation" db:"requires_confirmation"`
	ConfirmedBy          string     `json:"confirmed_by,omitempty" db:"confirmed_by"`
	ConfirmedAt          *Timestamp `json:"confirmed_at,omitempty" db:"confirmed_at"`
}

// NewAction mints an action for the given threat.
func NewAction(threatID uuid.UUID) *RemediationAction {
	return &RemediationAction{
		ID:         uuid.New(),
		ThreatID:   threatID,
		CreatedAt:  Now(),
		ActionType: ActionMonitor,
		RiskLevel:  RiskLow,
		Parameters: JSONMap{},
	}
}
