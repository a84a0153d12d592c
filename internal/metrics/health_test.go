package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func checkHealth(t *testing.T, h *HealthStatus) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	return rec.Code, body
}

func TestHealth_NoStoresConfiguredIsHealthy(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(true)

	code, body := checkHealth(t, h)
	if code != http.StatusOK {
		t.Fatalf("expected 200 with no stores configured, got %d (%v)", code, body)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
}

func TestHealth_ConfiguredStoreDownDegrades(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(true)
	h.SetRedisConfigured()

	// Configured and verified at init: healthy.
	if code, body := checkHealth(t, h); code != http.StatusOK {
		t.Fatalf("expected 200 right after init, got %d (%v)", code, body)
	}

	// Liveness checker reports the connection lost.
	h.mu.Lock()
	h.RedisConnected = false
	h.mu.Unlock()

	code, body := checkHealth(t, h)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with configured redis down, got %d", code)
	}
	if body["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", body["status"])
	}
}

func TestHealth_AllConfiguredStoresDownIsUnhealthy(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(true)
	h.SetRedisConfigured()
	h.SetSQLiteConfigured()

	h.mu.Lock()
	h.RedisConnected = false
	h.SQLiteOK = false
	h.mu.Unlock()

	code, body := checkHealth(t, h)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected unhealthy, got %v", body["status"])
	}
}

func TestHealth_FeedDisconnectDegrades(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(true)
	h.SetFeedConnected(false)

	code, body := checkHealth(t, h)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with feed down, got %d", code)
	}
	if body["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", body["status"])
	}
}
