package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

const explainTimeout = 5 * time.Second

// ExplainService turns threat records into operator-readable prose. The
// template path is always available; when an external text generator is
// configured and reachable its output replaces the template, and any
// generator error falls back to the template.
type ExplainService struct {
	provider         string // openai, anthropic, ollama, or empty
	openAIKey        string
	anthropicKey     string
	ollamaURL        string
	openAIBaseURL    string
	anthropicBaseURL string
	client           *http.Client
	initialized      bool
	log              *slog.Logger
}

// ExplainConfig carries the provider selection and credentials.
type ExplainConfig struct {
	Provider        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaURL       string
}

// NewExplainService configures the explainer. Reachability of Ollama is
// probed once; cloud providers are considered configured when a key exists.
func NewExplainService(ctx context.Context, cfg ExplainConfig, log *slog.Logger) *ExplainService {
	s := &ExplainService{
		provider:         cfg.Provider,
		openAIKey:        cfg.OpenAIAPIKey,
		anthropicKey:     cfg.AnthropicAPIKey,
		ollamaURL:        strings.TrimSuffix(cfg.OllamaURL, "/"),
		openAIBaseURL:    "https://api.openai.com",
		anthropicBaseURL: "https://api.anthropic.com",
		client:           &http.Client{Timeout: explainTimeout},
		log:              log,
	}

	switch cfg.Provider {
	case "openai":
		s.initialized = cfg.OpenAIAPIKey != ""
	case "anthropic":
		s.initialized = cfg.AnthropicAPIKey != ""
	case "ollama":
		s.initialized = s.probeOllama(ctx)
	}
	if s.initialized {
		log.Info("explanation service initialized", "provider", cfg.Provider)
	} else {
		log.Info("no explanation provider configured, using templates")
	}
	return s
}

// Explain produces the human-readable explanation for a threat.
func (s *ExplainService) Explain(ctx context.Context, t *models.Threat) string {
	if !s.initialized {
		return s.template(t)
	}

	var (
		text string
		err  error
	)
	switch s.provider {
	case "openai":
		text, err = s.explainOpenAI(ctx, t)
	case "anthropic":
		text, err = s.explainAnthropic(ctx, t)
	case "ollama":
		text, err = s.explainOllama(ctx, t)
	default:
		return s.template(t)
	}
	if err != nil || text == "" {
		s.log.Warn("explanation generation failed, using template", "provider", s.provider, "error", err)
		return s.template(t)
	}
	return text
}

// template is the severity-conditioned fallback sentence.
func (s *ExplainService) template(t *models.Threat) string {
	pod := t.SourcePod
	if pod == "" {
		pod = "unknown pod"
	}
	desc := t.ThreatType.Humanize()

	switch t.Severity {
	case models.SeverityCritical:
		return fmt.Sprintf("Sir, I've detected a critical %s threat in pod %s. Immediate action is required to secure the system.", desc, pod)
	case models.SeverityHigh:
		return fmt.Sprintf("Sir, a high-severity %s threat has been detected in pod %s. I recommend reviewing this immediately.", desc, pod)
	default:
		return fmt.Sprintf("Sir, I've detected a %s event in pod %s. Monitoring for escalation.", desc, pod)
	}
}

// prompt is the fixed prompt shape shared by all providers.
func (s *ExplainService) prompt(t *models.Threat) string {
	return fmt.Sprintf(`You are FRIDAY, an AI security assistant. Explain this security threat in a concise, professional manner:

Threat Type: %s
Severity: %s
Pod: %s
Description: %s

Provide a brief explanation starting with "Sir," in FRIDAY's style.`,
		t.ThreatType, t.Severity, t.SourcePod, truncate(t.Description, 200))
}

func (s *ExplainService) explainOpenAI(ctx context.Context, t *models.Threat) (string, error) {
	body := map[string]interface{}{
		"model":      "gpt-3.5-turbo",
		"messages":   []map[string]string{{"role": "user", "content": s.prompt(t)}},
		"max_tokens": 150,
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + s.openAIKey}
	if err := s.postJSON(ctx, s.openAIBaseURL+"/v1/chat/completions", headers, body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (s *ExplainService) explainAnthropic(ctx context.Context, t *models.Threat) (string, error) {
	body := map[string]interface{}{
		"model":      "claude-3-haiku-20240307",
		"max_tokens": 150,
		"messages":   []map[string]string{{"role": "user", "content": s.prompt(t)}},
	}
	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         s.anthropicKey,
		"anthropic-version": "2023-06-01",
	}
	if err := s.postJSON(ctx, s.anthropicBaseURL+"/v1/messages", headers, body, &out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("empty message response")
	}
	return strings.TrimSpace(out.Content[0].Text), nil
}

func (s *ExplainService) explainOllama(ctx context.Context, t *models.Threat) (string, error) {
	body := map[string]interface{}{
		"model":  "llama2",
		"prompt": s.prompt(t),
		"stream": false,
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := s.postJSON(ctx, s.ollamaURL+"/api/generate", nil, body, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Response), nil
}

func (s *ExplainService) postJSON(ctx context.Context, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *ExplainService) probeOllama(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, explainTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ollamaURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Health returns the health payload for the /health endpoint.
func (s *ExplainService) Health() map[string]interface{} {
	status := "healthy"
	if !s.initialized {
		status = "degraded"
	}
	provider := s.provider
	if provider == "" {
		provider = "template"
	}
	return map[string]interface{}{
		"status":   status,
		"provider": provider,
	}
}
