package process

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/agentprocessor/api"
	"github.com/BaSui01/agentprocessor/api/handlers"
	"github.com/BaSui01/agentprocessor/internal/ctxkeys"
	"github.com/BaSui01/agentprocessor/types"
	"go.uber.org/zap"
)

// Controller is the Process Controller produced by the Route Builder for
// every mounted action: it resolves the process id, guards the transition,
// selects an execution mode, records the processing event, and dispatches
// to the Execution Runner.
type Controller struct {
	registry *Registry
	reducer  *Reducer
	runner   *Runner
	impls    *Implementations
	locker   Locker
	logger   *zap.Logger
}

// NewController wires the components a mounted route needs to serve one
// action.
func NewController(registry *Registry, reducer *Reducer, runner *Runner, impls *Implementations, locker Locker, logger *zap.Logger) *Controller {
	return &Controller{
		registry: registry,
		reducer:  reducer,
		runner:   runner,
		impls:    impls,
		locker:   locker,
		logger:   logger,
	}
}

// HandleInitializer serves POST /agents/{agent}/programs/{action}: it always
// mints a fresh process id starting from the virtual UNINITIALIZED state.
func (c *Controller) HandleInitializer(agent *AgentDescriptor, h *HandlerDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.dispatch(w, r, agent, h, NewProcessID(), StateUninitialized)
	}
}

// HandleAction serves POST /agents/{agent}/processes/{pid}/actions/{action}:
// it looks up the process's latest recorded state and guards against it.
func (c *Controller) HandleAction(agent *AgentDescriptor, h *HandlerDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processID := r.PathValue("pid")
		latest, found, err := c.reducer.Latest(r.Context(), processID)
		if err != nil {
			handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrStoreUnavailable, "event store unavailable: "+err.Error(), c.logger)
			return
		}
		if !found {
			handlers.WriteErrorMessage(w, http.StatusNotFound, types.ErrProcessNotFound, "process not found", c.logger)
			return
		}
		c.dispatch(w, r, agent, h, processID, latest.State)
	}
}

// HandleStatus serves GET /agents/{agent}/processes/{pid}/status.
func (c *Controller) HandleStatus(agent *AgentDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processID := r.PathValue("pid")
		st, found, err := c.reducer.Reduce(r.Context(), agent, processID)
		if err != nil {
			handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrStoreUnavailable, "event store unavailable: "+err.Error(), c.logger)
			return
		}
		if !found {
			handlers.WriteErrorMessage(w, http.StatusNotFound, types.ErrProcessNotFound, "process not found", c.logger)
			return
		}
		renderStatus(w, st, c.logger)
	}
}

// dispatch implements §4.5 steps 1-5: guard, decode and validate, record the
// processing event under a per-process lock, then run the handler either
// inline or on the worker pool.
func (c *Controller) dispatch(w http.ResponseWriter, r *http.Request, agent *AgentDescriptor, h *HandlerDescriptor, processID, currentState string) {
	if !h.AllowsPredecessor(currentState) {
		c.runner.RecordGuardRejection(agent.Name, h.Action)
		handlers.WriteErrorMessage(w, http.StatusConflict, types.ErrGuardViolation,
			"action \""+h.Action+"\" is not allowed from state \""+currentState+"\"", c.logger)
		return
	}

	rawBody, err := decodeBody(r)
	if err != nil {
		handlers.WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid JSON body: "+err.Error(), c.logger)
		return
	}

	validated, details := ValidateInput(h, rawBody)
	if len(details) > 0 {
		c.runner.RecordValidationFailure(agent.Name, h.Action)
		writeValidationError(w, details, c.logger)
		return
	}

	callbackURL := resolveCallbackURL(r)
	mode := resolveExecutionMode(r, callbackURL)

	release, err := c.locker.Lock(r.Context(), processID)
	if err != nil {
		handlers.WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "could not acquire process lock: "+err.Error(), c.logger)
		return
	}

	// Re-resolve and re-guard under the lock: a concurrent request may have moved the process on.
	if currentState != StateUninitialized {
		latest, _, err := c.reducer.Latest(r.Context(), processID)
		if err != nil {
			release()
			handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrStoreUnavailable, "event store unavailable: "+err.Error(), c.logger)
			return
		}
		if !h.AllowsPredecessor(latest.State) {
			release()
			c.runner.RecordGuardRejection(agent.Name, h.Action)
			handlers.WriteErrorMessage(w, http.StatusConflict, types.ErrGuardViolation, "action \""+h.Action+"\" is not allowed from state \""+latest.State+"\"", c.logger)
			return
		}
	}

	_, err = c.runner.Append(r.Context(), Event{
		ProcessID: processID,
		Agent:     agent.Name,
		Action:    h.Action,
		State:     StateProcessing,
		Data: map[string]any{
			"action": h.Action,
			"body":   validated,
		},
	})
	release()
	if err != nil {
		handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrStoreUnavailable, "failed to record processing event: "+err.Error(), c.logger)
		return
	}

	fn, ok := c.impls.Lookup(agent.Name, h.Action)
	if !ok {
		c.logger.Error("no implementation registered for action",
			zap.String("agent", agent.Name), zap.String("action", h.Action))
		_, _ = c.runner.Append(r.Context(), Event{
			ProcessID: processID,
			Agent:     agent.Name,
			Action:    h.Action,
			State:     StateUnhandledError,
			Data:      map[string]any{"error": "no implementation registered for this action"},
		})
		handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrUnhandledError, "no implementation registered for this action", c.logger)
		return
	}

	ctx := ctxkeys.WithProcessID(r.Context(), processID)
	if callbackURL != "" {
		ctx = ctxkeys.WithCallbackURL(ctx, callbackURL)
	}

	switch mode {
	case "async":
		if err := c.runner.RunAsync(agent, h, fn, processID, callbackURL, validated); err != nil {
			handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrStoreUnavailable, "failed to record execution outcome: "+err.Error(), c.logger)
			return
		}
		handlers.WriteJSON(w, http.StatusAccepted, api.Response{
			Success: true,
			Data:    api.AcceptedResponse{ProcessID: processID},
		})
	default:
		// RunSync must not be cancelled by client disconnect per §5; detach
		// from the request's cancellation while keeping request-scoped values.
		runCtx := context.WithoutCancel(ctx)
		ev, err := c.runner.RunSync(runCtx, agent, h, fn, processID, callbackURL, validated)
		if err != nil {
			handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrStoreUnavailable, "failed to record execution outcome: "+err.Error(), c.logger)
			return
		}
		st := projectEvent(agent, ev)
		st.ProcessID = processID
		renderStatus(w, st, c.logger)
	}
}

// renderStatus writes st as the shared 200/500/<status_code> body used by
// both the synchronous dispatch response and GET .../status.
func renderStatus(w http.ResponseWriter, st Status, logger *zap.Logger) {
	switch st.State {
	case StateUnhandledError:
		handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrUnhandledError, st.Detail, logger)
	case StateHTTPError:
		status := st.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		handlers.WriteErrorMessage(w, status, types.ErrHandlerError, st.Detail, logger)
	default:
		handlers.WriteSuccess(w, api.StatusResponse{
			ProcessID:        st.ProcessID,
			State:            st.State,
			Data:             st.Data,
			AvailableActions: st.AvailableActions,
			UpdatedAt:        st.UpdatedAt,
		})
	}
}

// writeValidationError writes the 422 response carrying the schema
// deriver's per-field failures.
func writeValidationError(w http.ResponseWriter, details []api.ValidationDetail, logger *zap.Logger) {
	apiErr := types.NewError(types.ErrValidation, "request body failed schema validation").WithHTTPStatus(http.StatusUnprocessableEntity)
	if logger != nil {
		logger.Debug("validation failure", zap.Any("detail", details))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(api.Response{
		Success: false,
		Error: &api.ErrorInfo{
			Code:       string(apiErr.Code),
			Message:    apiErr.Message,
			HTTPStatus: http.StatusUnprocessableEntity,
			Detail:     details,
		},
	})
}

// decodeBody reads and decodes the request body into a plain map, treating a
// missing or empty body as an empty object so initializer actions whose
// params all carry defaults can be invoked with no body at all.
func decodeBody(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return map[string]any{}, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// resolveCallbackURL reads the callback-url header, discarding a
// malformed value rather than failing the request (treated as absent).
func resolveCallbackURL(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("callback-url"))
	if v == "" {
		return ""
	}
	if !handlers.ValidateURL(v) {
		return ""
	}
	return v
}

// resolveExecutionMode implements §4.5 step 3: execution-mode wins over the
// presence of callback-url, which in turn implies async over the sync
// default.
func resolveExecutionMode(r *http.Request, callbackURL string) string {
	mode := strings.ToLower(strings.TrimSpace(r.Header.Get("execution-mode")))
	switch mode {
	case "sync", "async":
		return mode
	}
	if callbackURL != "" {
		return "async"
	}
	return "sync"
}
