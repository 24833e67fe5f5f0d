package process

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/agentprocessor/eventstore"
	"github.com/BaSui01/agentprocessor/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRunner(store eventstore.Store) (*Runner, *pool.GoroutinePool) {
	p := pool.NewGoroutinePool(pool.GoroutinePoolConfig{MaxWorkers: 4, QueueSize: 16, IdleTimeout: time.Second})
	return NewRunner(store, p, nil, zap.NewNop(), time.Second), p
}

func TestRunnerAppendAssignsOccurredAtAndSeq(t *testing.T) {
	store := eventstore.NewMemoryStore()
	runner, p := newTestRunner(store)
	defer p.Close()

	ev, err := runner.Append(context.Background(), Event{ProcessID: "p1", State: "terminated"})
	require.NoError(t, err)
	assert.False(t, ev.OccurredAt.IsZero())
	assert.NotZero(t, ev.Seq)

	ev2, err := runner.Append(context.Background(), Event{ProcessID: "p1", State: "terminated"})
	require.NoError(t, err)
	assert.NotEqual(t, ev.Seq, ev2.Seq)
}

func TestRunSyncTerminatedResult(t *testing.T) {
	store := eventstore.NewMemoryStore()
	runner, p := newTestRunner(store)
	defer p.Close()

	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	h := agent.Handlers["idle"]

	fn := func(_ context.Context, input map[string]any) (Result, error) {
		return Result{Data: map[string]any{"question": input["question"], "answer": "world"}}, nil
	}

	ev, err := runner.RunSync(context.Background(), agent, h, fn, "p1", "", map[string]any{"question": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "terminated", ev.State)
	assert.Equal(t, "world", ev.Data["answer"])
}

func TestRunSyncNamedTransition(t *testing.T) {
	store := eventstore.NewMemoryStore()
	runner, p := newTestRunner(store)
	defer p.Close()

	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	h := agent.Handlers["idle"]

	fn := func(_ context.Context, input map[string]any) (Result, error) {
		return Result{State: "idle", Data: map[string]any{"question": input["question"]}}, nil
	}

	ev, err := runner.RunSync(context.Background(), agent, h, fn, "p1", "", map[string]any{"question": "what?"})
	require.NoError(t, err)
	assert.Equal(t, "idle", ev.State)
}

func TestRunSyncHTTPError(t *testing.T) {
	store := eventstore.NewMemoryStore()
	runner, p := newTestRunner(store)
	defer p.Close()

	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	h := agent.Handlers["idle"]

	fn := func(_ context.Context, _ map[string]any) (Result, error) {
		return Result{}, &HTTPError{Status: 500, Detail: "huge system error, please contact the administrator"}
	}

	ev, err := runner.RunSync(context.Background(), agent, h, fn, "p1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, StateHTTPError, ev.State)
	assert.Equal(t, 500, ev.Data["status_code"])
	assert.Equal(t, "huge system error, please contact the administrator", ev.Data["detail"])
}

func TestRunSyncUnhandledError(t *testing.T) {
	store := eventstore.NewMemoryStore()
	runner, p := newTestRunner(store)
	defer p.Close()

	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	h := agent.Handlers["idle"]

	fn := func(_ context.Context, _ map[string]any) (Result, error) {
		return Result{}, assert.AnError
	}

	ev, err := runner.RunSync(context.Background(), agent, h, fn, "p1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, StateUnhandledError, ev.State)
	assert.Equal(t, assert.AnError.Error(), ev.Data["error"])
}

func TestRunSyncRecoversPanic(t *testing.T) {
	store := eventstore.NewMemoryStore()
	runner, p := newTestRunner(store)
	defer p.Close()

	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	h := agent.Handlers["idle"]

	fn := func(_ context.Context, _ map[string]any) (Result, error) {
		panic("boom")
	}

	ev, err := runner.RunSync(context.Background(), agent, h, fn, "p1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, StateUnhandledError, ev.State)
	assert.Contains(t, ev.Data["error"], "boom")
}

func TestRunAsyncAppendsExactlyOneTerminalEvent(t *testing.T) {
	store := eventstore.NewMemoryStore()
	runner, p := newTestRunner(store)
	defer p.Close()

	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	h := agent.Handlers["idle"]

	done := make(chan struct{})
	fn := func(_ context.Context, input map[string]any) (Result, error) {
		defer close(done)
		return Result{Data: map[string]any{"question": input["question"], "answer": "world"}}, nil
	}

	err = runner.RunAsync(agent, h, fn, "p1", "", map[string]any{"question": "hello"})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async execution never ran")
	}

	require.Eventually(t, func() bool {
		latest, found, err := NewReducer(store, nil).Latest(context.Background(), "p1")
		return err == nil && found && latest.State == "terminated"
	}, time.Second, 5*time.Millisecond)
}

func TestRunAsyncRejectedBySaturatedPoolAppendsUnhandledError(t *testing.T) {
	store := eventstore.NewMemoryStore()
	p := pool.NewGoroutinePool(pool.GoroutinePoolConfig{MaxWorkers: 1, QueueSize: 1, IdleTimeout: time.Second})
	runner := NewRunner(store, p, nil, zap.NewNop(), time.Second)
	defer p.Close()

	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	h := agent.Handlers["idle"]

	block := make(chan struct{})
	started := make(chan struct{})
	blocker := func(_ context.Context, _ map[string]any) (Result, error) {
		<-block
		return Result{}, nil
	}

	// Occupy the pool's single worker and wait for it to actually start
	// running so the task is no longer sitting in the queue.
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first task never started")
	}

	// Fill the one-deep queue behind it so the pool has no room left.
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error { <-block; return nil }))

	err = runner.RunAsync(agent, h, blocker, "rejected-pid", "", nil)
	require.NoError(t, err)
	close(block)

	latest, found, err := NewReducer(store, nil).Latest(context.Background(), "rejected-pid")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateUnhandledError, latest.State)
}

func TestExecuteDeliversCallback(t *testing.T) {
	var received StatusResponse
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := eventstore.NewMemoryStore()
	runner, p := newTestRunner(store)
	defer p.Close()

	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	h := agent.Handlers["idle"]

	fn := func(_ context.Context, input map[string]any) (Result, error) {
		return Result{Data: map[string]any{"question": input["question"], "answer": "world"}}, nil
	}

	_, err = runner.RunSync(context.Background(), agent, h, fn, "p1", srv.URL, map[string]any{"question": "hello"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return received.ProcessID == "p1" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "terminated", received.State)
}

// StatusResponse mirrors process.Status's (tagless) JSON encoding, which is
// what the Execution Runner's callback delivery actually marshals.
type StatusResponse struct {
	ProcessID string
	State     string
}
