package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/covenantlabs/covenant/internal/bootstrap"
	"github.com/covenantlabs/covenant/internal/config"
	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/observability/logging"
	"github.com/covenantlabs/covenant/internal/observability/metrics"
)

const serviceName = "covenant-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics)

	slog.Info("worker subscribed", slog.String("subject", cfg.NATSSubject))
	err = app.Queue.SubscribeAskJobs(ctx, func(handlerCtx context.Context, job domain.AskJob) error {
		workerMetrics.StartJob()
		if !job.EnqueuedAt.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(job.EnqueuedAt))
		}

		askCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()

		started := time.Now()
		answer, askErr := app.AskUC.Ask(askCtx, job.Question)

		result := domain.AskJobResult{
			JobID:    job.ID,
			Question: job.Question,
			Expected: job.Expected,
		}
		citations := 0
		if askErr != nil {
			result.Error = askErr.Error()
		} else {
			result.QuestionType = answer.QuestionType
			result.ConfidenceHint = answer.ConfidenceHint
			result.Citations = answer.Citations
			citations = len(answer.Citations)
			if len(answer.FailedBackends) > 0 {
				slog.Warn("retrieval degraded",
					slog.String("job_id", job.ID),
					slog.String("question_type", string(answer.QuestionType)),
					slog.Any("failed_backends", answer.FailedBackends),
				)
			}
		}
		workerMetrics.FinishJob(serviceName, citations, time.Since(started), askErr)

		if pubErr := app.Queue.PublishResult(handlerCtx, result); pubErr != nil {
			workerMetrics.RecordPublishFailure(serviceName)
			return pubErr
		}
		return askErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker metrics shutdown error", slog.Any("error", err))
	}
}

func startMetricsServer(port string, m *metrics.WorkerMetrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("worker metrics listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()
	return server
}
