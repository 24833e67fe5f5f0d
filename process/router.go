package process

import (
	"net/http"
	"sort"

	"github.com/BaSui01/agentprocessor/api"
	"github.com/BaSui01/agentprocessor/api/handlers"
)

// NewRouter builds the full mounted HTTP surface for registry: two POST
// routes per agent action, a status route and a catch-all per agent, plus
// GET /docs. Route patterns use Go's
// method-and-path net/http.ServeMux syntax (Go 1.22+).
//
// Per agent, initializer actions are registered before non-initializers so
// that /docs lists them in a deterministic, predecessor-first order.
func NewRouter(registry *Registry, controller *Controller) http.Handler {
	mux := http.NewServeMux()

	var docs []api.RouteDoc

	for _, name := range registry.Names() {
		agent, _ := registry.Agent(name)

		actions := make([]string, 0, len(agent.Handlers))
		for action := range agent.Handlers {
			actions = append(actions, action)
		}
		sort.Slice(actions, func(i, j int) bool {
			hi, hj := agent.Handlers[actions[i]], agent.Handlers[actions[j]]
			if hi.IsInitializer != hj.IsInitializer {
				return hi.IsInitializer
			}
			return actions[i] < actions[j]
		})

		for _, action := range actions {
			h := agent.Handlers[action]

			// Every action is mounted at both shapes: the /programs path
			// mints a fresh process id, the /processes/{pid}/actions path
			// resolves an existing one. A non-initializer hit via /programs
			// or an initializer hit via /processes/.../actions both fail
			// the guard (the resolved predecessor state is never the one
			// that action accepts from that entry point) rather than 404,
			// so re-invoking a creator action against an existing process
			// correctly surfaces 409.
			programsPath := "/agents/" + agent.Name + "/programs/" + action
			actionsPath := "/agents/" + agent.Name + "/processes/{pid}/actions/" + action
			mux.HandleFunc("POST "+programsPath, controller.HandleInitializer(agent, h))
			mux.HandleFunc("POST "+actionsPath, controller.HandleAction(agent, h))

			canonicalPath := actionsPath
			if h.IsInitializer {
				canonicalPath = programsPath
			}
			docs = append(docs, api.RouteDoc{
				Agent: agent.Name, Action: action, Method: http.MethodPost,
				Path: canonicalPath, IsInitializer: h.IsInitializer, InputSchema: h.InputSchema,
			})
		}

		statusPath := "/agents/" + agent.Name + "/processes/{pid}/status"
		mux.HandleFunc("GET "+statusPath, controller.HandleStatus(agent))

		// Per-agent catch-all: any other method or sub-path under this
		// agent's namespace that wasn't matched above is an unknown route,
		// not a 404 for a nonexistent agent.
		mux.HandleFunc("/agents/"+agent.Name+"/", notFoundHandler)
	}

	mux.HandleFunc("/agents/", notFoundHandler)

	mux.HandleFunc("GET /docs", handleDocs(docs))

	return mux
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusNotFound, api.Response{
		Success: false,
		Error: &api.ErrorInfo{
			Code:       "NOT_FOUND",
			Message:    "no route matches " + r.Method + " " + r.URL.Path,
			HTTPStatus: http.StatusNotFound,
		},
	})
}

// handleDocs serves the OpenAPI-adjacent route listing: every mounted
// action, its method, path, and derived input schema. Present even with
// zero agents registered, satisfying the empty-host scenario.
func handleDocs(docs []api.RouteDoc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteSuccess(w, docs)
	}
}
