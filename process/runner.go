package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/BaSui01/agentprocessor/eventstore"
	"github.com/BaSui01/agentprocessor/internal/ctxkeys"
	"github.com/BaSui01/agentprocessor/internal/metrics"
	"github.com/BaSui01/agentprocessor/internal/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Runner invokes a handler body and appends its terminal event, dispatching
// asynchronous executions onto a bounded goroutine pool so a slow handler
// never blocks the HTTP request that kicked it off.
type Runner struct {
	store           eventstore.Store
	pool            *pool.GoroutinePool
	metrics         *metrics.Collector
	logger          *zap.Logger
	callbackClient  *http.Client
	callbackTimeout time.Duration

	seq atomic.Int64
}

// NewRunner builds a Runner. callbackTimeout bounds the callback-url POST
// made after a terminal event is appended; it never delays the append
// itself.
func NewRunner(store eventstore.Store, workerPool *pool.GoroutinePool, collector *metrics.Collector, logger *zap.Logger, callbackTimeout time.Duration) *Runner {
	return &Runner{
		store:           store,
		pool:            workerPool,
		metrics:         collector,
		logger:          logger,
		callbackClient:  &http.Client{Timeout: callbackTimeout},
		callbackTimeout: callbackTimeout,
	}
}

// RecordGuardRejection records a 409 guard violation on behalf of a caller
// that never otherwise touches the Runner's metrics.
func (r *Runner) RecordGuardRejection(agent, action string) {
	if r.metrics != nil {
		r.metrics.RecordGuardRejection(agent, action)
	}
}

// RecordValidationFailure records a 422 schema validation failure on behalf
// of a caller that never otherwise touches the Runner's metrics.
func (r *Runner) RecordValidationFailure(agent, action string) {
	if r.metrics != nil {
		r.metrics.RecordValidationFailure(agent, action)
	}
}

// nextSeq hands out a monotonically increasing tiebreaker for events whose
// OccurredAt timestamps collide; Event.Before falls back to it.
func (r *Runner) nextSeq() int64 {
	return r.seq.Add(1)
}

// Append assigns ev a sequence number and occurred-at time if unset, then
// inserts it into the event store. The log is append-only: no existing
// document is ever touched.
func (r *Runner) Append(ctx context.Context, ev Event) (Event, error) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if ev.Seq == 0 {
		ev.Seq = r.nextSeq()
	}
	if err := r.store.Insert(ctx, eventsCollection, documentFromEvent(ev)); err != nil {
		return Event{}, fmt.Errorf("append event for process %s: %w", ev.ProcessID, err)
	}
	return ev, nil
}

// RunSync invokes fn inline, appends its terminal event, and returns it to
// the caller once the terminal event is durable. The HTTP response is built
// from the returned event, not from fn's raw Result, so sync and async
// dispatch always agree on the shape of the terminal state.
func (r *Runner) RunSync(ctx context.Context, agent *AgentDescriptor, h *HandlerDescriptor, fn Func, processID, callbackURL string, input map[string]any) (Event, error) {
	return r.execute(ctx, agent, h, fn, processID, callbackURL, input)
}

// RunAsync submits the execution onto the worker pool and returns
// immediately; the caller has already appended (or the caller is expected
// to append) a "processing" placeholder event before calling this so GET
// .../status has something to report while the handler runs. If the pool
// rejects the submission outright (queue full), an unhandled_error terminal
// event is appended synchronously so the process never hangs in
// "processing" forever.
func (r *Runner) RunAsync(agent *AgentDescriptor, h *HandlerDescriptor, fn Func, processID, callbackURL string, input map[string]any) error {
	submitErr := r.pool.Submit(context.Background(), func(taskCtx context.Context) error {
		ctx := ctxkeys.WithProcessID(taskCtx, processID)
		if callbackURL != "" {
			ctx = ctxkeys.WithCallbackURL(ctx, callbackURL)
		}
		_, err := r.execute(ctx, agent, h, fn, processID, callbackURL, input)
		return err
	})
	if submitErr == nil {
		return nil
	}

	r.logger.Error("async dispatch rejected by worker pool",
		zap.String("agent", agent.Name),
		zap.String("action", h.Action),
		zap.String("process_id", processID),
		zap.Error(submitErr),
	)

	_, appendErr := r.Append(context.Background(), Event{
		ProcessID: processID,
		Agent:     agent.Name,
		Action:    h.Action,
		State:     StateUnhandledError,
		Data: map[string]any{
			"error": "execution pool rejected this request: " + submitErr.Error(),
		},
	})
	return appendErr
}

// execute runs fn under an OpenTelemetry span, classifies its outcome,
// appends the terminal event, records metrics, and (best effort) delivers
// the callback.
func (r *Runner) execute(ctx context.Context, agent *AgentDescriptor, h *HandlerDescriptor, fn Func, processID, callbackURL string, input map[string]any) (Event, error) {
	tracer := otel.Tracer("agentprocessor/process")
	ctx, span := tracer.Start(ctx, agent.Name+"."+h.Action,
		trace.WithAttributes(
			attribute.String("process.id", processID),
			attribute.String("process.agent", agent.Name),
			attribute.String("process.action", h.Action),
		),
	)
	defer span.End()

	start := time.Now()
	state, data := r.runHandler(ctx, fn, input)
	duration := time.Since(start)

	ev := Event{
		ProcessID: processID,
		Agent:     agent.Name,
		Action:    h.Action,
		State:     state,
		Data:      data,
	}

	outcome := "completed"
	switch state {
	case StateUnhandledError:
		outcome = StateUnhandledError
		span.SetStatus(codes.Error, "unhandled error")
	case StateHTTPError:
		outcome = StateHTTPError
		if statusCodeOf(data) >= 500 {
			r.logger.Error("handler returned http_error",
				zap.String("agent", agent.Name), zap.String("action", h.Action),
				zap.String("process_id", processID), zap.Any("data", data))
		} else {
			r.logger.Debug("handler returned http_error",
				zap.String("agent", agent.Name), zap.String("action", h.Action),
				zap.String("process_id", processID), zap.Any("data", data))
		}
	}
	if state == StateUnhandledError {
		r.logger.Error("handler panicked or returned an unclassified error",
			zap.String("agent", agent.Name), zap.String("action", h.Action),
			zap.String("process_id", processID), zap.Any("data", data))
	}

	span.SetAttributes(attribute.String("process.outcome", outcome))

	stored, err := r.Append(ctx, ev)
	if err != nil {
		span.RecordError(err)
		return Event{}, err
	}

	if r.metrics != nil {
		r.metrics.RecordExecution(agent.Name, h.Action, outcome, duration)
	}

	if callbackURL != "" {
		r.deliverCallback(ctx, agent, callbackURL, stored)
	}

	return stored, nil
}

// runHandler invokes fn, recovering panics and classifying errors into the
// two reserved terminal states. A zero-value Result.State maps to
// "terminated"; any other value is used as the handler's named transition.
func (r *Runner) runHandler(ctx context.Context, fn Func, input map[string]any) (state string, data map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			state = StateUnhandledError
			data = map[string]any{"error": fmt.Sprintf("panic: %v", rec)}
		}
	}()

	result, err := fn(ctx, input)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			return StateHTTPError, map[string]any{
				"status_code": httpErr.Status,
				"detail":      httpErr.Detail,
			}
		}
		return StateUnhandledError, map[string]any{"error": err.Error()}
	}

	resultState := result.State
	if resultState == "" {
		resultState = "terminated"
	}
	return resultState, result.Data
}

// deliverCallback POSTs the rendered status of ev to callbackURL. Delivery
// failures are logged and recorded in metrics but never mutate the event
// log or surface back to the handler; the event log is already durable by
// the time this runs.
func (r *Runner) deliverCallback(ctx context.Context, agent *AgentDescriptor, callbackURL string, ev Event) {
	st := projectEvent(agent, ev)
	st.ProcessID = ev.ProcessID

	body, err := json.Marshal(st)
	if err != nil {
		r.logger.Error("marshal callback body", zap.Error(err))
		if r.metrics != nil {
			r.metrics.RecordCallbackDelivery(false)
		}
		return
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), r.callbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		r.logger.Error("build callback request", zap.String("callback_url", callbackURL), zap.Error(err))
		if r.metrics != nil {
			r.metrics.RecordCallbackDelivery(false)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.callbackClient.Do(req)
	if err != nil {
		r.logger.Warn("callback delivery failed",
			zap.String("process_id", ev.ProcessID), zap.String("callback_url", callbackURL), zap.Error(err))
		if r.metrics != nil {
			r.metrics.RecordCallbackDelivery(false)
		}
		return
	}
	defer resp.Body.Close()

	delivered := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !delivered {
		r.logger.Warn("callback endpoint returned non-2xx",
			zap.String("process_id", ev.ProcessID), zap.String("callback_url", callbackURL), zap.Int("status", resp.StatusCode))
	}
	if r.metrics != nil {
		r.metrics.RecordCallbackDelivery(delivered)
	}
}
