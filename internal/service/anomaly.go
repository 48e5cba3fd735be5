package service

import (
	"log/slog"
	"math/rand"
	"strings"

	"github.com/sentinelforge/sentinelforge-backend/internal/ml"
	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

const featureDims = 15

// threatDangerScore weighs how inherently dangerous each threat type is.
var threatDangerScore = map[models.ThreatType]float64{
	models.ThreatReverseShell:        0.95,
	models.ThreatContainerEscape:     0.90,
	models.ThreatPrivilegeEscalation: 0.85,
	models.ThreatMaliciousProcess:    0.80,
	models.ThreatNetworkAnomaly:      0.60,
	models.ThreatFileAnomaly:         0.50,
	models.ThreatUnauthorizedAccess:  0.40,
	models.ThreatUnknown:             0.30,
}

// severityScore encodes severity on a [0,1] scale for the feature vector.
var severityScore = map[models.ThreatSeverity]float64{
	models.SeverityCritical: 0.95,
	models.SeverityHigh:     0.75,
	models.SeverityMedium:   0.50,
	models.SeverityLow:      0.25,
}

// fallbackScore is the deterministic severity table used when the model is
// unavailable.
var fallbackScore = map[models.ThreatSeverity]float64{
	models.SeverityLow:      0.3,
	models.SeverityMedium:   0.6,
	models.SeverityHigh:     0.85,
	models.SeverityCritical: 0.95,
}

// indicatorKeywords are the six binary keyword-presence features scanned
// over the detector output. The lists are fixed; changing them changes
// scores for stored history.
var indicatorKeywords = [6][]string{
	{"network", "port scan", "connection", "ddos", "brute force"}, // network
	{"file", "password", "secret", "credential"},                  // file
	{"process", "malware", "trojan", "virus", "backdoor"},         // process
	{"container escape", "host mount", "privileged"},              // container escape
	{"sudo", "su ", "setuid", "setgid", "capabilities"},           // privilege
	{"shell", "nc ", "netcat", "bash -i", "/bin/sh"},              // shell
}

// AnomalyDetector scores threats with an isolation forest trained at startup
// on a synthetic mixture, with a deterministic severity-table fallback. It
// is a pure function of the threat; callers attach the score.
type AnomalyDetector struct {
	forest *ml.IsolationForest
	log    *slog.Logger
}

// NewAnomalyDetector trains the model. Training failure is not fatal: the
// detector runs in fallback mode and health reports degraded.
func NewAnomalyDetector(log *slog.Logger) *AnomalyDetector {
	d := &AnomalyDetector{log: log}
	forest, err := ml.TrainIsolationForest(syntheticTrainingSet(42), 42)
	if err != nil {
		log.Warn("anomaly model training failed, using severity fallback", "error", err)
		return d
	}
	d.forest = forest
	log.Info("anomaly model trained", "features", featureDims)
	return d
}

// Score returns an anomaly score in [0,1]; higher means more anomalous.
// Whenever the model is unavailable or errors, the deterministic severity
// table answers instead.
func (d *AnomalyDetector) Score(t *models.Threat) float64 {
	if d.forest == nil {
		return d.fallback(t)
	}
	score, err := d.forest.Score(ExtractFeatures(t))
	if err != nil {
		d.log.Warn("anomaly scoring failed, using severity fallback", "threat_id", t.ID, "error", err)
		return d.fallback(t)
	}
	return score
}

func (d *AnomalyDetector) fallback(t *models.Threat) float64 {
	if score, ok := fallbackScore[t.Severity]; ok {
		return score
	}
	return 0.5
}

// Healthy reports whether the model path is active.
func (d *AnomalyDetector) Healthy() bool {
	return d.forest != nil
}

// Health returns the health payload for the /health endpoint.
func (d *AnomalyDetector) Health() map[string]interface{} {
	status := "healthy"
	if d.forest == nil {
		status = "degraded"
	}
	return map[string]interface{}{
		"status":       status,
		"model_loaded": d.forest != nil,
	}
}

// ExtractFeatures maps a threat to the 15-dimensional feature vector. Every
// component is in [0,1]. Deterministic: the same threat always yields the
// same vector.
func ExtractFeatures(t *models.Threat) []float64 {
	features := make([]float64, 0, featureDims)

	features = append(features, minf(float64(len(t.FalcoOutput))/500, 1))
	features = append(features, boolFeature(t.SourcePod != ""))
	features = append(features, boolFeature(t.SourceUser != ""))
	features = append(features, minf(float64(len(t.FalcoRule))/100, 1))
	features = append(features, threatDangerScore[t.ThreatType])
	features = append(features, severityScore[t.Severity])

	output := strings.ToLower(t.FalcoOutput)
	for _, keywords := range indicatorKeywords {
		present := 0.0
		for _, kw := range keywords {
			if strings.Contains(output, kw) {
				present = 1.0
				break
			}
		}
		features = append(features, present)
	}

	features = append(features, 0.5) // time-of-day proxy
	features = append(features, 0.3) // frequency proxy
	if t.SourceNamespace == "default" || t.SourceNamespace == "kube-system" {
		features = append(features, 0.7)
	} else {
		features = append(features, 0.3)
	}
	return features
}

// syntheticTrainingSet builds the startup training mixture: 80% normal
// samples (benign-looking feature ranges) and 20% anomalous ones.
func syntheticTrainingSet(seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	const total = 1000
	data := make([][]float64, 0, total)

	for i := 0; i < total*8/10; i++ {
		row := make([]float64, featureDims)
		row[0] = rng.Float64() * 0.4           // short outputs
		row[1] = boolFeature(rng.Float64() < 0.5)
		row[2] = boolFeature(rng.Float64() < 0.3)
		row[3] = rng.Float64() * 0.5
		row[4] = 0.3 + rng.Float64()*0.3 // low danger
		row[5] = 0.25 + rng.Float64()*0.25
		for j := 6; j < 12; j++ {
			row[j] = boolFeature(rng.Float64() < 0.1)
		}
		row[12] = 0.5
		row[13] = 0.3
		row[14] = 0.3
		data = append(data, row)
	}
	for i := 0; i < total*2/10; i++ {
		row := make([]float64, featureDims)
		row[0] = 0.6 + rng.Float64()*0.4 // long outputs
		row[1] = 1
		row[2] = boolFeature(rng.Float64() < 0.8)
		row[3] = 0.5 + rng.Float64()*0.5
		row[4] = 0.8 + rng.Float64()*0.2 // high danger
		row[5] = 0.75 + rng.Float64()*0.2
		for j := 6; j < 12; j++ {
			row[j] = boolFeature(rng.Float64() < 0.6)
		}
		row[12] = 0.5
		row[13] = 0.3
		row[14] = 0.7
		data = append(data, row)
	}
	return data
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
