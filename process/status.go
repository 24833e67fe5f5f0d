package process

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/BaSui01/agentprocessor/eventstore"
)

// eventsCollection is the single collection every backend stores process
// events in; it matches the table name internal/migration creates.
const eventsCollection = "process_events"

// Reducer computes process status by streaming a process's event log and
// keeping the latest entry, per the ordering rule in Event.Before.
type Reducer struct {
	store    eventstore.Store
	registry *Registry
}

// NewReducer builds a Reducer over store, using registry to compute
// available_actions.
func NewReducer(store eventstore.Store, registry *Registry) *Reducer {
	return &Reducer{store: store, registry: registry}
}

// Latest returns the most recent event for processID, or ok=false if the
// process has no events at all (an unknown process id).
func (r *Reducer) Latest(ctx context.Context, processID string) (Event, bool, error) {
	var latest Event
	found := false

	err := r.store.Find(ctx, eventsCollection, eventstore.Document{"process_id": processID}, func(doc eventstore.Document) error {
		ev, err := eventFromDocument(doc)
		if err != nil {
			return err
		}
		if !found || latest.Before(ev) {
			latest = ev
			found = true
		}
		return nil
	})
	if err != nil {
		return Event{}, false, fmt.Errorf("reduce process %s: %w", processID, err)
	}

	return latest, found, nil
}

// Status is the fully reduced view of a process, ready to render as either
// the synchronous action response or the GET .../status body.
type Status struct {
	ProcessID        string
	State            string
	Data             map[string]any
	AvailableActions []string
	UpdatedAt        time.Time
	// HTTPStatus and Detail are set only when State is "http_error" or
	// "unhandled_error", carrying the re-projected response.
	HTTPStatus int
	Detail     string
}

// Reduce computes the full Status for processID against agent's descriptor,
// re-projecting the two error states per the Status Reducer's contract.
// ok is false when the process has no events.
func (r *Reducer) Reduce(ctx context.Context, agent *AgentDescriptor, processID string) (Status, bool, error) {
	latest, found, err := r.Latest(ctx, processID)
	if err != nil {
		return Status{}, false, err
	}
	if !found {
		return Status{}, false, nil
	}

	st := projectEvent(agent, latest)
	st.ProcessID = processID
	return st, true, nil
}

// projectEvent renders ev as the Status a client would see, either from a
// synchronous dispatch response or a callback-url delivery body. It carries
// no process id of its own; callers that have one set it afterward.
func projectEvent(agent *AgentDescriptor, ev Event) Status {
	st := Status{
		State:     ev.State,
		Data:      ev.Data,
		UpdatedAt: ev.OccurredAt,
	}

	switch ev.State {
	case StateUnhandledError:
		st.HTTPStatus = 500
		if msg, ok := ev.Data["error"].(string); ok {
			st.Detail = msg
		}
	case StateHTTPError:
		st.HTTPStatus = statusCodeOf(ev.Data)
		if d, ok := ev.Data["detail"].(string); ok {
			st.Detail = d
		}
	default:
		st.AvailableActions = availableActions(agent, ev.State)
	}

	return st
}

func statusCodeOf(data map[string]any) int {
	switch v := data["status_code"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 500
	}
}

// availableActions implements the §3 data-model rule: every action whose
// allowed predecessor set contains state.
func availableActions(agent *AgentDescriptor, state string) []string {
	var out []string
	for name, h := range agent.Handlers {
		if h.AllowsPredecessor(state) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func eventFromDocument(doc eventstore.Document) (Event, error) {
	ev := Event{}
	if v, ok := doc["process_id"].(string); ok {
		ev.ProcessID = v
	}
	if v, ok := doc["agent"].(string); ok {
		ev.Agent = v
	}
	if v, ok := doc["action"].(string); ok {
		ev.Action = v
	}
	if v, ok := doc["state"].(string); ok {
		ev.State = v
	}
	if v, ok := doc["data"].(map[string]any); ok {
		ev.Data = v
	}
	if v, ok := doc["occurred_at"]; ok {
		t, err := asTime(v)
		if err != nil {
			return Event{}, fmt.Errorf("decode occurred_at: %w", err)
		}
		ev.OccurredAt = t
	}
	if v, ok := doc["seq"]; ok {
		ev.Seq = asInt64(v)
	}
	return ev, nil
}

func documentFromEvent(ev Event) eventstore.Document {
	return eventstore.Document{
		"process_id":  ev.ProcessID,
		"agent":       ev.Agent,
		"action":      ev.Action,
		"state":       ev.State,
		"data":        ev.Data,
		"occurred_at": ev.OccurredAt,
		"seq":         ev.Seq,
	}
}
