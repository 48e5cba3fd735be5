package models

// Falco webhook envelope field names consumed by the processor. The envelope
// is handled as an opaque map so that unknown detector fields survive into
// Threat.RawEvent verbatim.
const (
	FalcoFieldOutput       = "output"
	FalcoFieldPriority     = "priority"
	FalcoFieldRule         = "rule"
	FalcoFieldOutputFields = "output_fields"
)

// ThreatDetectedMessage is the frame fanned out to stream subscribers when a
// threat is recorded.
type ThreatDetectedMessage struct {
	Type        string `json:"type"` // always "threat_detected"
	ThreatID    string `json:"threat_id"`
	Severity    string `json:"severity"`
	ThreatType  string `json:"threat_type"`
	Pod         string `json:"pod"`
	Description string `json:"description"`
}
