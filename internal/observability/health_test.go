package observability_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"DepositsDetector/internal/observability"
)

func TestHealthChecker_Readiness(t *testing.T) {
	h := observability.NewHealthChecker("store", "loops")

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before components are ready, got %d", rec.Code)
	}

	var body struct {
		Status  string   `json:"status"`
		Pending []string `json:"pending"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Pending) != 2 || body.Pending[0] != "loops" || body.Pending[1] != "store" {
		t.Errorf("pending: got %v, want [loops store]", body.Pending)
	}

	h.SetReady("store", true)
	if h.IsReady() {
		t.Error("expected not ready with loops pending")
	}

	h.SetReady("loops", true)
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 once all components are ready, got %d", rec.Code)
	}
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := observability.NewHealthChecker("store")

	rec := httptest.NewRecorder()
	h.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness should always be 200, got %d", rec.Code)
	}
}
