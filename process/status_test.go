package process

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentprocessor/eventstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helloworldAgent(t *testing.T) *AgentDescriptor {
	t.Helper()
	agent, err := CompileDescriptor(helloworldDefinition())
	require.NoError(t, err)
	return agent
}

func TestReducerLatestPicksGreatestOccurredAt(t *testing.T) {
	store := eventstore.NewMemoryStore()
	reducer := NewReducer(store, nil)

	base := time.Now().UTC()
	require.NoError(t, store.Insert(context.Background(), eventsCollection, documentFromEvent(Event{
		ProcessID: "p1", State: StateProcessing, OccurredAt: base, Seq: 1,
	})))
	require.NoError(t, store.Insert(context.Background(), eventsCollection, documentFromEvent(Event{
		ProcessID: "p1", State: "terminated", OccurredAt: base.Add(time.Millisecond), Seq: 2,
	})))
	require.NoError(t, store.Insert(context.Background(), eventsCollection, documentFromEvent(Event{
		ProcessID: "p2", State: "terminated", OccurredAt: base, Seq: 1,
	})))

	latest, found, err := reducer.Latest(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "terminated", latest.State)

	_, found, err = reducer.Latest(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReducerReduceAvailableActions(t *testing.T) {
	store := eventstore.NewMemoryStore()
	agent := helloworldAgent(t)
	reducer := NewReducer(store, nil)

	pid := "p1"
	require.NoError(t, store.Insert(context.Background(), eventsCollection, documentFromEvent(Event{
		ProcessID: pid, State: "idle", OccurredAt: time.Now().UTC(), Seq: 1,
	})))

	st, found, err := reducer.Reduce(context.Background(), agent, pid)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "idle", st.State)
	// "idle" is declared only as an initializer's own action (allowed
	// predecessor UNINITIALIZED), so no action is reachable from the
	// domain state "idle" itself.
	assert.Empty(t, st.AvailableActions)
}

func TestReducerReduceUnknownProcess(t *testing.T) {
	store := eventstore.NewMemoryStore()
	agent := helloworldAgent(t)
	reducer := NewReducer(store, nil)

	_, found, err := reducer.Reduce(context.Background(), agent, "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProjectEventTerminated(t *testing.T) {
	agent := helloworldAgent(t)
	ev := Event{State: "terminated", Data: map[string]any{"answer": "world"}, OccurredAt: time.Now()}
	st := projectEvent(agent, ev)
	assert.Equal(t, "terminated", st.State)
	assert.Equal(t, 0, st.HTTPStatus)
	assert.Empty(t, st.AvailableActions)
}

func TestProjectEventUnhandledError(t *testing.T) {
	agent := helloworldAgent(t)
	ev := Event{State: StateUnhandledError, Data: map[string]any{"error": "boom"}}
	st := projectEvent(agent, ev)
	assert.Equal(t, 500, st.HTTPStatus)
	assert.Equal(t, "boom", st.Detail)
}

func TestProjectEventHTTPError(t *testing.T) {
	agent := helloworldAgent(t)
	ev := Event{State: StateHTTPError, Data: map[string]any{"status_code": 500, "detail": "huge system error"}}
	st := projectEvent(agent, ev)
	assert.Equal(t, 500, st.HTTPStatus)
	assert.Equal(t, "huge system error", st.Detail)
}

func TestAvailableActionsForUninitialized(t *testing.T) {
	agent := helloworldAgent(t)
	actions := availableActions(agent, StateUninitialized)
	assert.Equal(t, []string{"idle"}, actions)
}

func TestEventDocumentRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	ev := Event{
		ProcessID: "p1", Agent: "helloworld", Action: "idle",
		State: "terminated", Data: map[string]any{"a": 1}, OccurredAt: now, Seq: 42,
	}
	doc := documentFromEvent(ev)
	back, err := eventFromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, ev.ProcessID, back.ProcessID)
	assert.Equal(t, ev.Agent, back.Agent)
	assert.Equal(t, ev.Action, back.Action)
	assert.Equal(t, ev.State, back.State)
	assert.Equal(t, ev.Data, back.Data)
	assert.True(t, ev.OccurredAt.Equal(back.OccurredAt))
	assert.Equal(t, ev.Seq, back.Seq)
}

func TestStatusCodeOfFallsBackTo500(t *testing.T) {
	assert.Equal(t, 500, statusCodeOf(map[string]any{}))
	assert.Equal(t, 404, statusCodeOf(map[string]any{"status_code": 404}))
	assert.Equal(t, 404, statusCodeOf(map[string]any{"status_code": int64(404)}))
	assert.Equal(t, 404, statusCodeOf(map[string]any{"status_code": float64(404)}))
}
