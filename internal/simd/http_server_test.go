package simd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/metrics"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
)

func newTestHTTPServer(t *testing.T) (*HTTPServer, *RunStore) {
	t.Helper()
	store := NewRunStore()
	exec := NewRunExecutor(store)
	exec.SetTelemetry(metrics.NewTelemetry(prometheus.NewRegistry()))
	t.Cleanup(exec.Wait)
	return NewHTTPServer(store, exec), store
}

func doRequest(t *testing.T, srv *HTTPServer, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, reader))

	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
	}
	return rr, out
}

func TestHTTPServerHealthz(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rr, body := doRequest(t, srv, http.MethodGet, "/healthz", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["timestamp"] == "" {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestHTTPServerCreateRun(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rr, body := doRequest(t, srv, http.MethodPost, "/v1/runs", map[string]any{
		"run_id": "run-1",
		"input": map[string]any{
			"config_yaml": testConfigYAML,
			"experiments": 2,
			"metadata":    map[string]string{"team": "ops"},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	run := body["run"].(map[string]any)
	if run["id"] != "run-1" || run["status"] != "pending" || run["policy"] != "fallback" {
		t.Fatalf("unexpected run: %v", run)
	}
	if run["experiments"] != float64(2) {
		t.Fatalf("expected experiments override, got %v", run["experiments"])
	}

	rr, _ = doRequest(t, srv, http.MethodPost, "/v1/runs", map[string]any{
		"run_id": "run-1",
		"input":  map[string]any{"config_yaml": testConfigYAML},
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rr.Code)
	}
}

func TestHTTPServerCreateRunBadRequests(t *testing.T) {
	srv, _ := newTestHTTPServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader("{")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}

	for _, body := range []map[string]any{
		{},
		{"input": map[string]any{"config_yaml": "network: {}"}},
		{"input": map[string]any{"config_yaml": testConfigYAML, "policy": "psychic"}},
	} {
		rr, resp := doRequest(t, srv, http.MethodPost, "/v1/runs", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, rr.Code)
		}
		if resp["error"] == "" {
			t.Fatalf("expected error message")
		}
	}
}

func TestHTTPServerRunLifecycle(t *testing.T) {
	srv, store := newTestHTTPServer(t)
	if _, err := store.Create("run-1", testInput()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	rr, _ := doRequest(t, srv, http.MethodGet, "/v1/runs/run-1/report", nil)
	if rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 before completion, got %d", rr.Code)
	}

	rr, body := doRequest(t, srv, http.MethodPost, "/v1/runs/run-1:start", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", rr.Code, rr.Body.String())
	}
	if status := body["run"].(map[string]any)["status"]; status != "running" && status != "completed" {
		t.Fatalf("unexpected status after start: %v", status)
	}

	srv.Executor.Wait()
	waitForStatus(t, store, "run-1", models.RunStatusCompleted)

	rr, body = doRequest(t, srv, http.MethodGet, "/v1/runs/run-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	run := body["run"].(map[string]any)
	if run["status"] != "completed" || run["expected_cost"] == nil {
		t.Fatalf("unexpected run: %v", run)
	}
	progress := run["progress"].(map[string]any)
	if progress["completed"] != float64(3) || progress["total"] != float64(3) || progress["fraction"] != float64(1) {
		t.Fatalf("unexpected progress: %v", progress)
	}

	rr, body = doRequest(t, srv, http.MethodGet, "/v1/runs/run-1/report", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for report, got %d", rr.Code)
	}
	summary := body["summary"].(map[string]any)
	if summary["experiments"] != float64(3) || summary["accepted"] != float64(6) {
		t.Fatalf("unexpected summary: %v", summary)
	}
	if body["fallback_rate"] != float64(0) {
		t.Fatalf("unexpected fallback rate: %v", body["fallback_rate"])
	}
	outcomes := body["outcomes"].(map[string]any)
	if outcomes["accepted"] != float64(6) {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
	stats := summary["period_stats"].([]any)
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 periods, got %v", summary["period_stats"])
	}
	first := stats[0].(map[string]any)
	if first["period"] != float64(0) || first["missed_demand"].(map[string]any)["count"] != float64(3) {
		t.Fatalf("unexpected period stats: %v", first)
	}
	aggregations := body["aggregations"].(map[string]any)
	for _, name := range []string{"experiment_cost", "period_cost", "missed_demand", "solve_seconds"} {
		if aggregations[name] == nil {
			t.Fatalf("expected %s aggregation, got %v", name, aggregations)
		}
	}
	if aggregations["experiment_cost"].(map[string]any)["count"] != float64(3) {
		t.Fatalf("unexpected experiment cost aggregation: %v", aggregations["experiment_cost"])
	}

	rr, body = doRequest(t, srv, http.MethodGet, "/v1/runs/run-1/experiments/1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for experiment, got %d", rr.Code)
	}
	periods := body["periods"].([]any)
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	if periods[0].(map[string]any)["outcome"] != "accepted" {
		t.Fatalf("unexpected period: %v", periods[0])
	}

	rr, _ = doRequest(t, srv, http.MethodGet, "/v1/runs/run-1/experiments/9", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for experiment out of range, got %d", rr.Code)
	}

	rr, _ = doRequest(t, srv, http.MethodPost, "/v1/runs/run-1:start", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 when restarting a finished run, got %d", rr.Code)
	}
}

func TestHTTPServerStopRun(t *testing.T) {
	srv, store := newTestHTTPServer(t)
	if _, err := store.Create("run-1", testInput()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	rr, body := doRequest(t, srv, http.MethodPost, "/v1/runs/run-1:stop", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["run"].(map[string]any)["status"] != "cancelled" {
		t.Fatalf("expected cancelled, got %v", body["run"])
	}

	rr, _ = doRequest(t, srv, http.MethodPost, "/v1/runs/missing:stop", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHTTPServerGetRunNotFound(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	for _, path := range []string{"/v1/runs/nope", "/v1/runs/nope/report", "/v1/runs/nope/experiments/0", "/v2/other"} {
		rr, body := doRequest(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rr.Code)
		}
		if body["error"] == nil {
			t.Fatalf("%s: expected json error", path)
		}
	}

	rr, _ := doRequest(t, srv, http.MethodGet, "/v1/unknown", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 under /v1, got %d", rr.Code)
	}
}

func TestHTTPServerMethodNotAllowedUnderV1(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/v1/runs"},
		{http.MethodPut, "/v1/runs/run-1"},
		{http.MethodGet, "/v1/runs/run-1:start"},
	} {
		rr, body := doRequest(t, srv, tc.method, tc.path, nil)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", tc.method, tc.path, rr.Code)
		}
		if body["error"] != "method not allowed" {
			t.Fatalf("%s %s: expected json error, got %v", tc.method, tc.path, body)
		}
	}

	rr, _ := doRequest(t, srv, http.MethodPost, "/healthz", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 on root router, got %d", rr.Code)
	}
}

func TestHTTPServerListRuns(t *testing.T) {
	srv, store := newTestHTTPServer(t)
	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if _, err := store.Create(id, testInput()); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	if _, err := store.SetStatus("run-c", models.RunStatusFailed, "boom"); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}

	rr, body := doRequest(t, srv, http.MethodGet, "/v1/runs?limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if runs := body["runs"].([]any); len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	pagination := body["pagination"].(map[string]any)
	if pagination["limit"] != float64(2) || pagination["count"] != float64(2) {
		t.Fatalf("unexpected pagination: %v", pagination)
	}

	_, body = doRequest(t, srv, http.MethodGet, "/v1/runs?status=failed", nil)
	runs := body["runs"].([]any)
	if len(runs) != 1 || runs[0].(map[string]any)["error"] != "boom" {
		t.Fatalf("unexpected filtered runs: %v", runs)
	}

	rr, _ = doRequest(t, srv, http.MethodGet, "/v1/runs?status=sleeping", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestHTTPServerServesArchivedRuns(t *testing.T) {
	archive, err := OpenArchive(t.TempDir() + "/runs.db")
	if err != nil {
		t.Fatalf("OpenArchive error: %v", err)
	}
	defer archive.Close()
	if err := archive.Save(context.Background(), &models.Run{
		ID:      "old-run",
		Status:  models.RunStatusCompleted,
		Policy:  "stochastic",
		Summary: &models.RunSummary{ExpectedCost: 99},
	}, nil); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	store := NewRunStore()
	exec := NewRunExecutor(store)
	exec.SetArchive(archive)
	srv := NewHTTPServer(store, exec)

	rr, body := doRequest(t, srv, http.MethodGet, "/v1/runs/old-run", nil)
	if rr.Code != http.StatusOK || body["run"].(map[string]any)["status"] != "completed" {
		t.Fatalf("expected archived run, got %d %v", rr.Code, body)
	}
	rr, body = doRequest(t, srv, http.MethodGet, "/v1/runs/old-run/report", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected archived report, got %d", rr.Code)
	}
	if body["summary"].(map[string]any)["expected_cost"] != float64(99) {
		t.Fatalf("unexpected report: %v", body)
	}
}

func TestHTTPServerMetricsEndpoint(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "whsim_active_runs") {
		t.Fatalf("expected telemetry output, got:\n%s", rr.Body.String())
	}
}
