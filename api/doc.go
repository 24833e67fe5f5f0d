// Package api provides the HTTP response envelope and route documentation
// for the agent process controller.
//
// # API Overview
//
// The controller derives its routes from the registered agents:
//   - POST /agents/{agent}/programs/{action}           — initializer actions
//   - POST /agents/{agent}/processes/{pid}/actions/{action} — non-initializer actions
//   - GET  /agents/{agent}/processes/{pid}/status      — current state
//
// Request headers. `callback-url` (optional URL, POSTed with the rendered
// status after the terminal event is appended) and `execution-mode`
// (`sync`|`async`, case-insensitive).
//
// Response codes. `200` sync success; `202` async accepted; `404` unknown
// process or agent; `409` disallowed transition; `422` body validation
// failure; `5xx` handler error.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
