package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wshub "github.com/sentinelforge/sentinelforge-backend/internal/api/websocket"
	"github.com/sentinelforge/sentinelforge-backend/internal/models"
	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
	"github.com/sentinelforge/sentinelforge-backend/internal/service"
)

type fixture struct {
	router *mux.Router
	store  *repository.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := repository.NewMemoryStore()
	hub := wshub.NewHub(ctx)
	go hub.Run()
	t.Cleanup(hub.Stop)

	processor := service.NewFalcoProcessor(store, hub, log)
	detector := service.NewAnomalyDetector(log)
	policy := service.NewRulePolicy()
	remediation := service.NewRemediationService(ctx, nil, store, log)
	explain := service.NewExplainService(ctx, service.ExplainConfig{}, log)
	ws := wshub.NewHandler(ctx, hub, log)

	handler := NewHandler(store, processor, detector, policy, remediation, explain, ws, log)
	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return &fixture{router: router, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doRaw(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	return raw
}

func falcoPayload(priority, output string) map[string]interface{} {
	return map[string]interface{}{
		"priority": priority,
		"rule":     "Terminal shell in container",
		"output":   output,
		"output_fields": map[string]interface{}{
			"k8s.pod.name": "web-1",
			"k8s.ns.name":  "prod",
		},
	}
}

func TestWebhookFullPipeline(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/falco/webhook",
		falcoPayload("Emergency", "reverse shell spawned via netcat"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, "critical", body["severity"])
	assert.Equal(t, "terminate_pod", body["action"])
	require.Contains(t, body, "threat_id")

	// The threat is persisted with its ML score attached.
	threats, err := f.store.ListThreats(context.Background())
	require.NoError(t, err)
	require.Len(t, threats, 1)
	require.NotNil(t, threats[0].MLScore)

	// Decision recorded: critical reverse shell terminates, gated on
	// confirmation, so it is pending rather than executed.
	actions, err := f.store.ListActions(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionTerminatePod, actions[0].ActionType)
	assert.True(t, actions[0].RequiresConfirmation)
	assert.False(t, actions[0].Executed)
}

func TestWebhookLowSeverityAutoExecutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/falco/webhook",
		falcoPayload("Notice", "routine event"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "log", decode(t, rec)["action"])

	actions, err := f.store.ListActions(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionLog, actions[0].ActionType)
	assert.True(t, actions[0].Executed)
	require.NotNil(t, actions[0].Success)
	assert.True(t, *actions[0].Success)
}

func TestWebhookInvalidEnvelope(t *testing.T) {
	f := newFixture(t)

	// Valid JSON object with no detector fields: acknowledged, no threat.
	rec := f.do(t, http.MethodPost, "/api/v1/falco/webhook", map[string]interface{}{"foo": "bar"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "processed", body["status"])
	assert.Nil(t, body["threat"])

	// Valid JSON that is not an object: same acknowledgement.
	rec = f.doRaw(t, http.MethodPost, "/api/v1/falco/webhook", []byte(`[1,2,3]`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec)["threat"])

	// Malformed JSON: server-side failure.
	rec = f.doRaw(t, http.MethodPost, "/api/v1/falco/webhook", []byte(`{"broken`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec), "error")

	threats, err := f.store.ListThreats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, threats)
}

func TestSimulateSkipsRemediation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/simulate",
		falcoPayload("Emergency", "reverse shell spawned via netcat"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "processed", body["status"])
	require.Contains(t, body, "threat_id")

	// Normalizer ran (threat persisted), nothing downstream did.
	threats, err := f.store.ListThreats(context.Background())
	require.NoError(t, err)
	require.Len(t, threats, 1)
	assert.Nil(t, threats[0].MLScore, "simulate must not score")

	actions, err := f.store.ListActions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, actions, "simulate must not decide or execute")
}

func TestListThreatsFilters(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/v1/falco/webhook", falcoPayload("Emergency", "reverse shell via netcat"))
	f.do(t, http.MethodPost, "/api/v1/falco/webhook", falcoPayload("Notice", "routine event"))

	rec := f.do(t, http.MethodGet, "/api/v1/threats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)

	rec = f.do(t, http.MethodGet, "/api/v1/threats?severity=critical", nil)
	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "critical", list[0]["severity"])

	rec = f.do(t, http.MethodGet, "/api/v1/threats?threat_type=reverse_shell", nil)
	assert.Len(t, decodeList(t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/v1/threats?resolved=true", nil)
	assert.Len(t, decodeList(t, rec), 0)

	rec = f.do(t, http.MethodGet, "/api/v1/threats?severity=catastrophic", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListThreatsLimitWindow(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/v1/falco/webhook", falcoPayload("Notice", "first"))
	f.do(t, http.MethodPost, "/api/v1/falco/webhook", falcoPayload("Notice", "second"))
	f.do(t, http.MethodPost, "/api/v1/falco/webhook", falcoPayload("Notice", "third"))

	// Limit truncates the insertion-order list from the head.
	rec := f.do(t, http.MethodGet, "/api/v1/threats?limit=2", nil)
	list := decodeList(t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0]["description"])
	assert.Equal(t, "second", list[1]["description"])

	rec = f.do(t, http.MethodGet, "/api/v1/threats?limit=1", nil)
	list = decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0]["description"])

	// Out-of-range limits clamp instead of erroring.
	rec = f.do(t, http.MethodGet, "/api/v1/threats?limit=0", nil)
	assert.Len(t, decodeList(t, rec), 1)
	rec = f.do(t, http.MethodGet, "/api/v1/threats?limit=99999", nil)
	assert.Len(t, decodeList(t, rec), 3)
}

func TestGetAndResolveThreat(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/falco/webhook", falcoPayload("Notice", "routine"))
	id := decode(t, rec)["threat_id"].(string)

	rec = f.do(t, http.MethodGet, "/api/v1/threats/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["id"])

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/threats/%s/resolve", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "resolved", body["status"])
	assert.Equal(t, id, body["threat_id"])

	rec = f.do(t, http.MethodGet, "/api/v1/threats/"+id, nil)
	assert.Equal(t, true, decode(t, rec)["resolved"])

	rec = f.do(t, http.MethodGet, "/api/v1/threats/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/threats/00000000-0000-0000-0000-000000000001/resolve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/threats/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActionsEndpoints(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/v1/falco/webhook", falcoPayload("Emergency", "reverse shell via netcat"))
	f.do(t, http.MethodPost, "/api/v1/falco/webhook", falcoPayload("Notice", "routine"))

	rec := f.do(t, http.MethodGet, "/api/v1/actions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)

	rec = f.do(t, http.MethodGet, "/api/v1/actions?executed=true", nil)
	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "log", list[0]["action_type"])

	rec = f.do(t, http.MethodGet, "/api/v1/actions?action_type=terminate_pod", nil)
	list = decodeList(t, rec)
	require.Len(t, list, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/actions?action_type=defenestrate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := list[0]["id"].(string)
	rec = f.do(t, http.MethodGet, "/api/v1/actions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["id"])

	rec = f.do(t, http.MethodGet, "/api/v1/actions/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExplainEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/falco/webhook",
		falcoPayload("Emergency", "reverse shell via netcat"))
	id := decode(t, rec)["threat_id"].(string)

	rec = f.do(t, http.MethodGet, "/api/v1/explain/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, id, body["threat_id"])
	assert.Equal(t, "critical", body["severity"])
	assert.Contains(t, body["summary"], "Reverse Shell")
	assert.Contains(t, body["details"], "netcat")
	assert.Contains(t, body["explanation"], "Sir,")

	rec = f.do(t, http.MethodGet, "/api/v1/explain/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "SentinelForge API", body["message"])
	assert.Equal(t, "running", body["status"])

	rec = f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	services := body["services"].(map[string]interface{})
	for _, name := range []string{"ml", "rl", "llm", "remediation"} {
		assert.Contains(t, services, name)
	}
	// No orchestrator and no explanation provider: degraded, still 200.
	assert.Equal(t, "degraded", body["status"])
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec2 := httptest.NewRecorder()
	f.router.ServeHTTP(rec2, req)
	assert.Equal(t, "req-42", rec2.Header().Get("X-Request-ID"))
}
