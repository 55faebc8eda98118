package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/infrastructure/resilience"
)

// Queue moves batch-evaluation questions between the enqueuing side (HTTP
// batch endpoint) and the worker. Jobs flow on the main subject; the worker
// publishes citation payloads on the results subject.
type Queue struct {
	conn           *nats.Conn
	subject        string
	resultsSubject string
	executor       *resilience.Executor
}

// Options tunes the connection. The zero Options is valid; zero fields get
// production defaults.
type Options struct {
	ResultsSubject       string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func (o Options) withDefaults(subject string) Options {
	out := o
	if out.ResultsSubject == "" {
		out.ResultsSubject = subject + ".results"
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 2 * time.Second
	}
	if out.ReconnectWait <= 0 {
		out.ReconnectWait = 2 * time.Second
	}
	if out.MaxReconnects <= 0 {
		out.MaxReconnects = 60
	}
	if out.RetryOnFailedConnect == nil {
		yes := true
		out.RetryOnFailedConnect = &yes
	}
	return out
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	opts := options.withDefaults(subject)

	conn, err := nats.Connect(
		url,
		nats.Name("covenant"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(*opts.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &Queue{
		conn:           conn,
		subject:        subject,
		resultsSubject: opts.ResultsSubject,
		executor:       opts.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishAskJob(ctx context.Context, job domain.AskJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal ask job: %w", err)
	}
	return q.publish(ctx, q.subject, data)
}

// PublishResult emits the worker's citation payload for one finished job.
func (q *Queue) PublishResult(ctx context.Context, result domain.AskJobResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal ask result: %w", err)
	}
	return q.publish(ctx, q.resultsSubject, data)
}

func (q *Queue) publish(ctx context.Context, subject string, data []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyQueueError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeAskJobs consumes jobs in the shared "workers" queue group until
// ctx ends, then drains so in-flight handlers finish before the connection
// goes away. Malformed payloads are dropped, not redelivered.
func (q *Queue) SubscribeAskJobs(ctx context.Context, handler func(context.Context, domain.AskJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var job domain.AskJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			slog.Warn("worker dropped malformed job payload", slog.Any("error", err))
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, job); err != nil {
			slog.Error("worker handler error", slog.String("job_id", job.ID), slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
