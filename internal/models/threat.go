package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ThreatSeverity is the normalized severity of a detected threat.
type ThreatSeverity string

const (
	SeverityLow      ThreatSeverity = "low"
	SeverityMedium   ThreatSeverity = "medium"
	SeverityHigh     ThreatSeverity = "high"
	SeverityCritical ThreatSeverity = "critical"
)

// Severities lists all severity values in ascending order.
var Severities = []ThreatSeverity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ParseSeverity returns the severity for s, reporting whether s is a member
// of the closed set.
func ParseSeverity(s string) (ThreatSeverity, bool) {
	switch ThreatSeverity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return ThreatSeverity(s), true
	}
	return "", false
}

// ThreatType classifies what kind of threat was detected.
type ThreatType string

const (
	ThreatReverseShell        ThreatType = "reverse_shell"
	ThreatPrivilegeEscalation ThreatType = "privilege_escalation"
	ThreatUnauthorizedAccess  ThreatType = "unauthorized_access"
	ThreatMaliciousProcess    ThreatType = "malicious_process"
	ThreatNetworkAnomaly      ThreatType = "network_anomaly"
	ThreatFileAnomaly         ThreatType = "file_anomaly"
	ThreatContainerEscape     ThreatType = "container_escape"
	ThreatUnknown             ThreatType = "unknown"
)

// ThreatTypes lists all threat type values.
var ThreatTypes = []ThreatType{
	ThreatReverseShell,
	ThreatPrivilegeEscalation,
	ThreatUnauthorizedAccess,
	ThreatMaliciousProcess,
	ThreatNetworkAnomaly,
	ThreatFileAnomaly,
	ThreatContainerEscape,
	ThreatUnknown,
}

// ParseThreatType returns the threat type for s, reporting whether s is a
// member of the closed set.
func ParseThreatType(s string) (ThreatType, bool) {
	for _, t := range ThreatTypes {
		if ThreatType(s) == t {
			return t, true
		}
	}
	return "", false
}

// Humanize returns the threat type as a title-cased phrase for explanations,
// e.g. "reverse_shell" -> "Reverse Shell".
func (t ThreatType) Humanize() string {
	out := make([]byte, 0, len(t))
	upper := true
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c == '_' {
			out = append(out, ' ')
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

// JSONMap stores an opaque JSON object in a single database column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*m = JSONMap{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Threat is a normalized record of a suspected security event. Identity and
// classification are immutable once stored; only MLScore (set exactly once
// after scoring) and Resolved/ResolvedAt may change.
type Threat struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	DetectedAt Timestamp      `json:"detected_at" db:"detected_at"`
	Severity   ThreatSeverity `json:"severity" db:"severity"`
	ThreatType ThreatType     `json:"threat_type" db:"threat_type"`

	// Source information
	SourcePod       string `json:"source_pod,omitempty" db:"source_pod"`
	SourceNamespace string `json:"source_namespace,omitempty" db:"source_namespace"`
	SourceContainer string `json:"source_container,omitempty" db:"source_container"`
	SourceUser      string `json:"source_user,omitempty" db:"source_user"`

	// Threat details
	Description   string `json:"description" db:"description"`
	FalcoOutput   string `json:"falco_output" db:"falco_output"`
	FalcoRule     string `json:"falco_rule,omitempty" db:"falco_rule"`
	FalcoPriority string `json:"falco_priority,omitempty" db:"falco_priority"`

	// Detection scores, both in [0,1]
	MLScore    *float64 `json:"ml_score,omitempty" db:"ml_score"`
	Confidence float64  `json:"confidence" db:"confidence"`

	// Raw detector envelope, preserved verbatim
	RawEvent JSONMap `json:"raw_event" db:"raw_event"`

	// Status
	Resolved   bool       `json:"resolved" db:"resolved"`
	ResolvedAt *Timestamp `json:"resolved_at,omitempty" db:"resolved_at"`
}

// NewThreat mints a threat with a fresh identity and detection time.
func NewThreat() *Threat {
	return &Threat{
		ID:         uuid.New(),
		DetectedAt: Now(),
		Severity:   SeverityMedium,
		ThreatType: ThreatUnknown,
		RawEvent:   JSONMap{},
	}
}
