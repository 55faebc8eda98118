package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/covenantlabs/covenant/internal/config"
)

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	handler := newTestHandler(config.Config{
		APIRateLimitRPS:   1,
		APIRateLimitBurst: 1,
	})

	get := func() *httptest.ResponseRecorder {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return res
	}

	if res := get(); res.Code != http.StatusOK {
		t.Fatalf("request within burst: expected 200, got %d", res.Code)
	}

	res := get()
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("request beyond burst: expected 429, got %d", res.Code)
	}
	retryAfter, err := strconv.Atoi(res.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Fatalf("want a positive integer Retry-After, got %q", res.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("429 body must name the rejection")
	}
}

func TestBackpressureShedsWhenQueueWaitExpires(t *testing.T) {
	occupied := make(chan struct{}, 1)
	release := make(chan struct{})
	firstDone := make(chan int, 1)

	slow := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		occupied <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(slow, 1, 20*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
		firstDone <- res.Code
	}()
	<-occupied

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("saturated gate: expected 503, got %d", res.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode 503 body: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("503 body must name the rejection")
	}

	close(release)
	select {
	case code := <-firstDone:
		if code != http.StatusNoContent {
			t.Fatalf("held request: expected 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("held request never finished")
	}
}

func TestBackpressureServesRequestThatGetsSlotInTime(t *testing.T) {
	occupied := make(chan struct{}, 1)
	release := make(chan struct{})
	codes := make(chan int, 2)

	var calls atomic.Int32
	slow := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			occupied <- struct{}{}
			<-release
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(slow, 1, 500*time.Millisecond)

	serve := func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))
		codes <- res.Code
	}

	go serve()
	<-occupied

	go serve()
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		select {
		case code := <-codes:
			if code != http.StatusNoContent {
				t.Fatalf("expected 204 for both requests, got %d", code)
			}
		case <-time.After(time.Second):
			t.Fatal("request never finished")
		}
	}
}
