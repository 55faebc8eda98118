package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/covenantlabs/covenant/internal/config"
	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
	"github.com/covenantlabs/covenant/internal/observability/metrics"
)

const serviceName = "covenant-api"

type Router struct {
	cfg       config.Config
	metrics   *metrics.HTTPServerMetrics
	ask       ports.QuestionService
	contracts ports.ContractReader
	queue     ports.MessageQueue
}

// NewRouter wires the question pipeline behind the HTTP surface. metrics and
// queue may be nil; the metrics endpoint and the batch endpoint degrade
// accordingly.
func NewRouter(
	cfg config.Config,
	m *metrics.HTTPServerMetrics,
	ask ports.QuestionService,
	contracts ports.ContractReader,
	queue ports.MessageQueue,
) *Router {
	return &Router{
		cfg:       cfg,
		metrics:   m,
		ask:       ask,
		contracts: contracts,
		queue:     queue,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.handleAsk)
	mux.HandleFunc("/v1/ask/batch", rt.handleAskBatch)
	mux.HandleFunc("/v1/contracts/", rt.getContractByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.APIMaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, time.Duration(rt.cfg.APIQueueWaitMS)*time.Millisecond)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	result, err := rt.ask.Ask(r.Context(), req.Question)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordAskObservation(
			serviceName,
			string(result.QuestionType),
			string(result.ConfidenceHint),
			len(result.Citations),
			time.Since(start),
		)
		rt.metrics.RecordBackendFailures(serviceName, result.FailedBackends)
	}
	if len(result.FailedBackends) > 0 {
		slog.Warn("retrieval degraded",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("question_type", string(result.QuestionType)),
			slog.Any("failed_backends", result.FailedBackends),
		)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) handleAskBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "batch queue is not configured"})
		return
	}

	var req struct {
		Jobs []struct {
			ID       string `json:"id"`
			Question string `json:"question"`
			Expected string `json:"expected"`
		} `json:"jobs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Jobs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "jobs list is empty"})
		return
	}
	for i, job := range req.Jobs {
		if strings.TrimSpace(job.Question) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("job %d: question is required", i),
			})
			return
		}
	}

	now := time.Now().UTC()
	jobIDs := make([]string, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		id := job.ID
		if id == "" {
			id = uuid.NewString()
		}
		err := rt.queue.PublishAskJob(r.Context(), domain.AskJob{
			ID:         id,
			Question:   job.Question,
			Expected:   job.Expected,
			EnqueuedAt: now,
		})
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		jobIDs = append(jobIDs, id)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"enqueued": len(jobIDs),
		"job_ids":  jobIDs,
	})
}

func (rt *Router) getContractByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/contracts/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "contract id is required"})
		return
	}

	record, err := rt.contracts.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
