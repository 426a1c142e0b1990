package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetProbes(t *testing.T, version string) {
	t.Helper()
	reg = &probeSet{
		probes:  make(map[Component]probe),
		started: time.Now(),
		version: version,
	}
}

func TestReport_RecordsLatestProbe(t *testing.T) {
	resetProbes(t, "")

	Report(ComponentStorage, true, "open")
	Report(ComponentStorage, false, "cache write failed")

	p := reg.probes[ComponentStorage]
	assert.False(t, p.healthy)
	assert.Equal(t, "cache write failed", p.detail)
	assert.False(t, p.at.IsZero())
}

func TestGetHealth_AllHealthy(t *testing.T) {
	resetProbes(t, "1.0.0")

	Report(ComponentStorage, true, "open")
	Report(ComponentBackend, true, "pacman")
	Report(ComponentIndex, true, "generation 3")

	health := GetHealth()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.0.0", health.Version)
	assert.Equal(t, "ok: pacman", health.Components["backend"])
}

func TestGetHealth_BackendFailureOnlyDegrades(t *testing.T) {
	resetProbes(t, "")

	Report(ComponentStorage, true, "open")
	Report(ComponentBackend, false, "serving last-known counts")
	Report(ComponentIndex, true, "generation 3")

	health := GetHealth()
	assert.Equal(t, "degraded", health.Status, "a dead backend leaves the daemon answering from its index")
	assert.Equal(t, "failing: serving last-known counts", health.Components["backend"])
}

func TestGetHealth_StorageFailureIsUnhealthy(t *testing.T) {
	resetProbes(t, "")

	Report(ComponentStorage, false, "db closed")
	Report(ComponentBackend, false, "unreachable")

	health := GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
}

func TestGetReadiness_RequiresEveryGateComponent(t *testing.T) {
	resetProbes(t, "")

	Report(ComponentStorage, true, "open")
	// backend and index have not reported yet

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Equal(t, "waiting for backend", readiness.Message)
	assert.Equal(t, "no report yet", readiness.Components["index"])
}

func TestGetReadiness_UnhealthyGateComponentBlocks(t *testing.T) {
	resetProbes(t, "")

	Report(ComponentStorage, false, "corrupt file")
	Report(ComponentBackend, true, "pacman")
	Report(ComponentIndex, true, "generation 1")

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Equal(t, "waiting for pkv", readiness.Message)
}

func TestGetReadiness_Ready(t *testing.T) {
	resetProbes(t, "")

	Report(ComponentStorage, true, "open")
	Report(ComponentBackend, true, "apt")
	Report(ComponentIndex, true, "generation 1")

	readiness := GetReadiness()
	assert.Equal(t, "ready", readiness.Status)
	assert.Empty(t, readiness.Message)
}

func serveHealthRequest(t *testing.T, handler http.HandlerFunc, path string) (*httptest.ResponseRecorder, Snapshot) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	handler(w, req)

	var snap Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return w, snap
}

func TestHealthHandler_DegradedStillServes200(t *testing.T) {
	resetProbes(t, "test")

	Report(ComponentStorage, true, "open")
	Report(ComponentBackend, false, "unreachable")
	Report(ComponentIndex, true, "generation 2")

	w, snap := serveHealthRequest(t, HealthHandler(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", snap.Status)
	assert.Equal(t, "test", snap.Version)
}

func TestHealthHandler_Unhealthy503(t *testing.T) {
	resetProbes(t, "")

	Report(ComponentStorage, false, "db closed")

	w, snap := serveHealthRequest(t, HealthHandler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", snap.Status)
}

func TestReadyHandler_NotReadyUntilGateMet(t *testing.T) {
	resetProbes(t, "")

	w, snap := serveHealthRequest(t, ReadyHandler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", snap.Status)

	Report(ComponentStorage, true, "open")
	Report(ComponentBackend, true, "pacman")
	Report(ComponentIndex, true, "generation 1")

	w, snap = serveHealthRequest(t, ReadyHandler(), "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", snap.Status)
}

func TestLivenessHandler_AlwaysAlive(t *testing.T) {
	resetProbes(t, "")

	req := httptest.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["uptime"])
}
