package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

func benignThreat() *models.Threat {
	t := models.NewThreat()
	t.Severity = models.SeverityLow
	t.ThreatType = models.ThreatUnknown
	t.FalcoOutput = "file opened"
	return t
}

func hostileThreat() *models.Threat {
	t := models.NewThreat()
	t.Severity = models.SeverityCritical
	t.ThreatType = models.ThreatReverseShell
	t.SourcePod = "web-1"
	t.SourceNamespace = "default"
	t.SourceUser = "root"
	t.FalcoOutput = "reverse shell via netcat to attacker host, sudo escalation, credential access, privileged container"
	t.FalcoRule = "Terminal shell in container with outbound network connection to a suspicious destination"
	return t
}

func TestScoreRange(t *testing.T) {
	d := NewAnomalyDetector(testLogger())
	require.True(t, d.Healthy())

	for _, threat := range []*models.Threat{benignThreat(), hostileThreat()} {
		score := d.Score(threat)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	d := NewAnomalyDetector(testLogger())
	threat := hostileThreat()
	assert.Equal(t, d.Score(threat), d.Score(threat))

	// Two detectors trained independently agree: same seed, same data.
	other := NewAnomalyDetector(testLogger())
	assert.Equal(t, d.Score(threat), other.Score(threat))
}

func TestHostileScoresHigherThanBenign(t *testing.T) {
	d := NewAnomalyDetector(testLogger())
	assert.Greater(t, d.Score(hostileThreat()), d.Score(benignThreat()))
}

func TestFallbackSeverityTable(t *testing.T) {
	d := &AnomalyDetector{log: testLogger()} // no forest: fallback mode
	require.False(t, d.Healthy())

	cases := map[models.ThreatSeverity]float64{
		models.SeverityLow:      0.3,
		models.SeverityMedium:   0.6,
		models.SeverityHigh:     0.85,
		models.SeverityCritical: 0.95,
	}
	for severity, want := range cases {
		threat := models.NewThreat()
		threat.Severity = severity
		assert.Equal(t, want, d.Score(threat))
	}

	health := d.Health()
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, false, health["model_loaded"])
}

func TestExtractFeatures(t *testing.T) {
	threat := hostileThreat()
	features := ExtractFeatures(threat)
	require.Len(t, features, 15)
	for i, f := range features {
		assert.GreaterOrEqual(t, f, 0.0, "feature %d", i)
		assert.LessOrEqual(t, f, 1.0, "feature %d", i)
	}

	assert.Equal(t, 1.0, features[1], "has_pod")
	assert.Equal(t, 1.0, features[2], "has_user")
	assert.Equal(t, 0.95, features[4], "reverse shell danger weight")
	assert.Equal(t, 0.7, features[14], "default namespace is sensitive")

	quiet := benignThreat()
	quiet.SourceNamespace = "staging"
	qf := ExtractFeatures(quiet)
	assert.Equal(t, 0.0, qf[1])
	assert.Equal(t, 0.3, qf[14])
}
