package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/covenantlabs/covenant/internal/config"
	"github.com/covenantlabs/covenant/internal/core/domain"
)

type askFake struct {
	result      *domain.AskResult
	err         error
	gotQuestion string
}

func (f *askFake) Ask(_ context.Context, question string) (*domain.AskResult, error) {
	f.gotQuestion = question
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.AskResult{
		Citations: []domain.Citation{{
			DocID:        "doc-1",
			ClauseNumber: "7.2",
			PageNum:      3,
			SpanStart:    120,
			SpanEnd:      240,
			Excerpt:      "This Agreement shall be governed by the laws of Delaware.",
		}},
		QuestionType:   domain.QuestionStructured,
		ConfidenceHint: domain.HintMetadata,
	}, nil
}

type contractsFake struct {
	record *domain.ContractRecord
	err    error
	gotID  string
}

func (f *contractsFake) GetByID(_ context.Context, id string) (*domain.ContractRecord, error) {
	f.gotID = id
	if f.err != nil {
		return nil, f.err
	}
	if f.record != nil {
		return f.record, nil
	}
	return &domain.ContractRecord{ID: id, Filename: "vallen_nda.pdf", Counterparty: "Vallen Distribution, Inc."}, nil
}

type queueFake struct {
	published []domain.AskJob
	err       error
}

func (f *queueFake) PublishAskJob(_ context.Context, job domain.AskJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *queueFake) SubscribeAskJobs(context.Context, func(context.Context, domain.AskJob) error) error {
	return nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, nil, &askFake{}, &contractsFake{}, &queueFake{}).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestAskEndpointReturnsCitations(t *testing.T) {
	ask := &askFake{}
	handler := NewRouter(config.Config{}, nil, ask, &contractsFake{}, nil).Handler()

	res := postJSON(t, handler, "/v1/ask", map[string]string{"question": "What is the governing state of Vallen?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	if ask.gotQuestion != "What is the governing state of Vallen?" {
		t.Fatalf("question passed through = %q", ask.gotQuestion)
	}

	var result domain.AskResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.ConfidenceHint != domain.HintMetadata {
		t.Fatalf("hint = %q, want metadata", result.ConfidenceHint)
	}
	if len(result.Citations) != 1 || result.Citations[0].DocID != "doc-1" {
		t.Fatalf("unexpected citations: %+v", result.Citations)
	}
}

func TestAskEndpointRejectsNonPost(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ask", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestAskBatchEnqueuesJobs(t *testing.T) {
	queue := &queueFake{}
	handler := NewRouter(config.Config{}, nil, &askFake{}, &contractsFake{}, queue).Handler()

	res := postJSON(t, handler, "/v1/ask/batch", map[string]any{
		"jobs": []map[string]string{
			{"question": "What is the governing law of the Acme NDA?"},
			{"id": "eval-7", "question": "Who signed the Vallen NDA?", "expected": "Vallen Distribution, Inc."},
		},
	})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var resp struct {
		Enqueued int      `json:"enqueued"`
		JobIDs   []string `json:"job_ids"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Enqueued != 2 || len(resp.JobIDs) != 2 {
		t.Fatalf("unexpected enqueue response: %+v", resp)
	}
	if len(queue.published) != 2 {
		t.Fatalf("published = %d jobs, want 2", len(queue.published))
	}
	if queue.published[0].ID == "" {
		t.Fatal("missing id must be assigned")
	}
	if queue.published[1].ID != "eval-7" {
		t.Fatalf("given id = %q, want eval-7", queue.published[1].ID)
	}
	if queue.published[1].Expected != "Vallen Distribution, Inc." {
		t.Fatalf("expected answer lost: %+v", queue.published[1])
	}
	for _, job := range queue.published {
		if job.EnqueuedAt.IsZero() {
			t.Fatalf("job %s missing enqueue time", job.ID)
		}
	}
}

func TestAskBatchValidatesJobs(t *testing.T) {
	handler := newTestHandler(config.Config{})

	res := postJSON(t, handler, "/v1/ask/batch", map[string]any{"jobs": []map[string]string{}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("empty jobs: expected 400, got %d", res.Code)
	}

	res = postJSON(t, handler, "/v1/ask/batch", map[string]any{
		"jobs": []map[string]string{{"question": "   "}},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("blank question: expected 400, got %d", res.Code)
	}
}

func TestAskBatchWithoutQueueReturns503(t *testing.T) {
	handler := NewRouter(config.Config{}, nil, &askFake{}, &contractsFake{}, nil).Handler()

	res := postJSON(t, handler, "/v1/ask/batch", map[string]any{
		"jobs": []map[string]string{{"question": "anything"}},
	})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestGetContractReturnsRecord(t *testing.T) {
	contracts := &contractsFake{}
	handler := NewRouter(config.Config{}, nil, &askFake{}, contracts, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/contracts/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if contracts.gotID != "doc-1" {
		t.Fatalf("id passed through = %q", contracts.gotID)
	}

	var record domain.ContractRecord
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.Counterparty != "Vallen Distribution, Inc." {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestGetContractRequiresID(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/contracts/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

// Keeps the batch surface honest about enqueue time: jobs enqueued in one
// request share a single timestamp, so queue-lag math stays comparable.
func TestAskBatchSharesEnqueueTimestamp(t *testing.T) {
	queue := &queueFake{}
	handler := NewRouter(config.Config{}, nil, &askFake{}, &contractsFake{}, queue).Handler()

	before := time.Now().Add(-time.Second)
	res := postJSON(t, handler, "/v1/ask/batch", map[string]any{
		"jobs": []map[string]string{
			{"question": "q1"},
			{"question": "q2"},
		},
	})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if !queue.published[0].EnqueuedAt.Equal(queue.published[1].EnqueuedAt) {
		t.Fatalf("enqueue timestamps differ: %v vs %v", queue.published[0].EnqueuedAt, queue.published[1].EnqueuedAt)
	}
	if queue.published[0].EnqueuedAt.Before(before) {
		t.Fatalf("enqueue timestamp too old: %v", queue.published[0].EnqueuedAt)
	}
}
