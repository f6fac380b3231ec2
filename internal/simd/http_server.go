package simd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/metrics"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/logger"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
)

type HTTPServer struct {
	router   *mux.Router
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		router:   mux.NewRouter(),
		store:    store,
		Executor: executor,
	}

	var telemetry *metrics.Telemetry
	if executor != nil {
		telemetry = executor.telemetry
	}
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/runs", s.handleCreateRun).Methods(http.MethodPost)
	api.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id:[^/:]+}:start", s.handleStartRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id:[^/:]+}:stop", s.handleStopRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id:[^/:]+}", s.handleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id:[^/:]+}/report", s.handleGetReport).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id:[^/:]+}/experiments/{experiment:[0-9]+}", s.handleGetExperiment).Methods(http.MethodGet)

	// subrouters do not inherit these from the root router
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	for _, r := range []*mux.Router{s.router, api} {
		r.NotFoundHandler = notFound
		r.MethodNotAllowedHandler = notAllowed
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// archive returns the executor's archive, nil when runs are not persisted
func (s *HTTPServer) archive() *Archive {
	if s.Executor == nil {
		return nil
	}
	return s.Executor.archive
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string    `json:"run_id,omitempty"`
		Input *RunInput `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == nil {
		s.writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	rec, err := s.store.Create(req.RunID, req.Input)
	if err != nil {
		if errors.Is(err, ErrRunExists) {
			s.writeError(w, http.StatusConflict, err.Error())
		} else {
			s.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	logger.Info("run created", "run_id", rec.Run.ID, "policy", rec.Run.Policy)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": convertRunToJSON(rec),
	})
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 50
	if parsed, err := strconv.Atoi(query.Get("limit")); err == nil && parsed > 0 {
		limit = min(parsed, 1000)
	}
	offset := 0
	if parsed, err := strconv.Atoi(query.Get("offset")); err == nil && parsed >= 0 {
		offset = parsed
	}

	status := models.RunStatus(query.Get("status"))
	switch status {
	case "", models.RunStatusPending, models.RunStatusRunning,
		models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown status: "+string(status))
		return
	}

	runs := s.store.ListFiltered(limit, offset, status)
	runsJSON := make([]map[string]any, 0, len(runs))
	for _, rec := range runs {
		runsJSON = append(runsJSON, convertRunToJSON(rec))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runsJSON,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

func (s *HTTPServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	if rec, ok := s.store.Get(runID); ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"run": convertRunToJSON(rec)})
		return
	}
	if archive := s.archive(); archive != nil {
		if run, err := archive.Get(r.Context(), runID); err == nil {
			s.writeJSON(w, http.StatusOK, map[string]any{"run": convertRunToJSON(&RunRecord{Run: run})})
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "run not found")
}

func (s *HTTPServer) handleStartRun(w http.ResponseWriter, r *http.Request) {
	s.transition(w, mux.Vars(r)["id"], s.Executor.Start)
}

func (s *HTTPServer) handleStopRun(w http.ResponseWriter, r *http.Request) {
	s.transition(w, mux.Vars(r)["id"], s.Executor.Stop)
}

func (s *HTTPServer) transition(w http.ResponseWriter, runID string, fn func(string) (*RunRecord, error)) {
	rec, err := fn(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRunTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrRunIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": convertRunToJSON(rec)})
}

// handleGetReport handles GET /v1/runs/{id}/report
func (s *HTTPServer) handleGetReport(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	rec, ok := s.store.Get(runID)
	if archive := s.archive(); !ok && archive != nil {
		if run, err := archive.Get(r.Context(), runID); err == nil {
			rec, ok = &RunRecord{Run: run}, true
		}
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Run.Summary == nil {
		s.writeError(w, http.StatusPreconditionFailed, "report not available")
		return
	}

	s.writeJSON(w, http.StatusOK, reportResponse(rec))
}

// reportResponse is the report body shared by the HTTP and gRPC APIs. Runs
// loaded from the archive carry only the summary.
func reportResponse(rec *RunRecord) map[string]any {
	response := map[string]any{
		"run_id":        rec.Run.ID,
		"policy":        rec.Run.Policy,
		"seed":          rec.Run.Seed,
		"summary":       rec.Run.Summary,
		"fallback_rate": rec.Run.Summary.FallbackRate(),
	}
	if rec.Report != nil {
		response["outcomes"] = rec.Report.Ledger.Count()
		response["duration_ms"] = rec.Report.Duration.Milliseconds()
		if rec.Report.Metrics != nil {
			response["aggregations"] = rec.Report.Metrics.GetSummary().Aggregations
		}
	}
	return response
}

// handleGetExperiment handles GET /v1/runs/{id}/experiments/{experiment}
// and returns the period-by-period decisions
func (s *HTTPServer) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["id"]
	experiment, err := strconv.Atoi(vars["experiment"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid experiment index")
		return
	}

	var records []decision.Record
	if rec, ok := s.store.Get(runID); ok {
		if rec.Report == nil {
			s.writeError(w, http.StatusPreconditionFailed, "report not available")
			return
		}
		if experiment >= rec.Report.Ledger.Experiments() {
			s.writeError(w, http.StatusNotFound, "experiment out of range")
			return
		}
		records = rec.Report.Ledger.Experiment(experiment)
	} else if archive := s.archive(); archive != nil {
		rows, err := archive.Ledger(r.Context(), runID)
		if err != nil {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if experiment >= len(rows) {
			s.writeError(w, http.StatusNotFound, "experiment out of range")
			return
		}
		records = rows[experiment]
	} else {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     runID,
		"experiment": experiment,
		"periods":    records,
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

// convertRunToJSON flattens a run for the API; timestamps are unix
// milliseconds and zero when unset
func convertRunToJSON(rec *RunRecord) map[string]any {
	run := rec.Run
	out := map[string]any{
		"id":                 run.ID,
		"status":             string(run.Status),
		"policy":             run.Policy,
		"experiments":        run.Experiments,
		"seed":               run.Seed,
		"created_at_unix_ms": unixMs(run.CreatedAt),
		"started_at_unix_ms": unixMs(run.StartTime),
		"ended_at_unix_ms":   unixMs(run.EndTime),
		"error":              run.Error,
	}
	if rec.Progress != nil {
		done, total := rec.Progress.Snapshot()
		out["progress"] = map[string]any{"completed": done, "total": total, "fraction": rec.Progress.Fraction()}
	}
	if run.Summary != nil {
		out["expected_cost"] = run.Summary.ExpectedCost
	}
	if len(run.Metadata) > 0 {
		out["metadata"] = run.Metadata
	}
	return out
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
