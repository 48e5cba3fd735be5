package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
	"github.com/sentinelforge/sentinelforge-backend/internal/pkg/metrics"
	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
)

// Broadcaster fans a detection event out to live stream subscribers.
type Broadcaster interface {
	BroadcastThreatDetected(msg models.ThreatDetectedMessage) error
}

// prioritySeverity maps Falco priorities to threat severities. The table is
// closed; unknown priorities map to low.
var prioritySeverity = map[string]models.ThreatSeverity{
	"Emergency":     models.SeverityCritical,
	"Alert":         models.SeverityHigh,
	"Critical":      models.SeverityHigh,
	"Error":         models.SeverityMedium,
	"Warning":       models.SeverityMedium,
	"Notice":        models.SeverityLow,
	"Informational": models.SeverityLow,
	"Debug":         models.SeverityLow,
}

// threatKeywords drives keyword-based threat type detection. Declaration
// order matters: the first matching entry wins.
var threatKeywords = []struct {
	threatType models.ThreatType
	keywords   []string
}{
	{models.ThreatReverseShell, []string{"reverse shell", "nc ", "netcat", "bash -i", "/bin/sh", "shell"}},
	{models.ThreatPrivilegeEscalation, []string{"sudo", "su ", "setuid", "setgid", "capabilities"}},
	{models.ThreatUnauthorizedAccess, []string{"unauthorized", "forbidden", "access denied"}},
	{models.ThreatMaliciousProcess, []string{"malware", "virus", "trojan", "backdoor"}},
	{models.ThreatNetworkAnomaly, []string{"port scan", "brute force", "ddos"}},
	{models.ThreatFileAnomaly, []string{"sensitive file", "password", "secret", "credential"}},
	{models.ThreatContainerEscape, []string{"container escape", "host mount", "privileged"}},
}

// FalcoProcessor normalizes detector envelopes into threat records,
// persists them, and fans out a detection notification.
type FalcoProcessor struct {
	store     repository.Store
	broadcast Broadcaster
	log       *slog.Logger
}

// NewFalcoProcessor creates the normalization stage.
func NewFalcoProcessor(store repository.Store, broadcast Broadcaster, log *slog.Logger) *FalcoProcessor {
	return &FalcoProcessor{store: store, broadcast: broadcast, log: log}
}

// ProcessEvent converts one detector envelope into a Threat, persists it,
// and broadcasts a detection event. A structurally invalid envelope (missing
// both output and priority) is dropped: (nil, nil). Persistence and
// broadcast failures are logged but never propagate; the threat is still
// returned so the caller can continue the pipeline.
func (p *FalcoProcessor) ProcessEvent(ctx context.Context, event map[string]interface{}) (*models.Threat, error) {
	output, hasOutput := stringField(event, models.FalcoFieldOutput)
	priority, hasPriority := stringField(event, models.FalcoFieldPriority)
	if !hasOutput && !hasPriority {
		metrics.EventsDroppedTotal.Inc()
		p.log.Debug("dropping structurally invalid detector envelope")
		return nil, nil
	}
	rule, _ := stringField(event, models.FalcoFieldRule)
	outputFields, _ := event[models.FalcoFieldOutputFields].(map[string]interface{})

	severity, ok := prioritySeverity[priority]
	if !ok {
		severity = models.SeverityLow
	}

	threat := models.NewThreat()
	threat.Severity = severity
	threat.ThreatType = detectThreatType(strings.ToLower(output), strings.ToLower(rule))
	threat.SourcePod = firstField(outputFields, "k8s.pod.name")
	threat.SourceNamespace = firstField(outputFields, "k8s.ns.name", "k8s.namespace.name")
	threat.SourceContainer = firstField(outputFields, "container.name", "k8s.container.name")
	threat.SourceUser = firstField(outputFields, "user.name", "proc.user")
	threat.Description = truncate(output, 500)
	threat.FalcoOutput = output
	threat.FalcoRule = rule
	threat.FalcoPriority = priority
	threat.Confidence = 0.7 // default; refined by scoring and decision stages
	threat.RawEvent = models.JSONMap(event)
	if threat.SourceNamespace == "" {
		threat.SourceNamespace = "default"
	}

	// The broadcast must come strictly after the threat is visible in the
	// store, so subscribers can immediately query what they were told about.
	if err := p.store.AddThreat(ctx, threat); err != nil {
		p.log.Error("failed to persist threat", "threat_id", threat.ID, "error", err)
	}
	if err := p.broadcast.BroadcastThreatDetected(models.ThreatDetectedMessage{
		Type:        "threat_detected",
		ThreatID:    threat.ID.String(),
		Severity:    string(threat.Severity),
		ThreatType:  string(threat.ThreatType),
		Pod:         threat.SourcePod,
		Description: truncate(threat.Description, 100),
	}); err != nil {
		p.log.Warn("failed to broadcast threat", "threat_id", threat.ID, "error", err)
	}

	metrics.ThreatsProcessedTotal.WithLabelValues(string(threat.Severity), string(threat.ThreatType)).Inc()
	p.log.Info("threat detected",
		"threat_id", threat.ID,
		"severity", threat.Severity,
		"threat_type", threat.ThreatType,
		"pod", threat.SourcePod,
	)
	return threat, nil
}

// detectThreatType scans output and rule (already lowercased) for the first
// matching keyword group.
func detectThreatType(output, rule string) models.ThreatType {
	combined := output + " " + rule
	for _, entry := range threatKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(combined, kw) {
				return entry.threatType
			}
		}
	}
	return models.ThreatUnknown
}

func stringField(event map[string]interface{}, key string) (string, bool) {
	v, ok := event[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func firstField(fields map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// truncate limits s to n code points.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
